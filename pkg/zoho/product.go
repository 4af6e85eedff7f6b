// Package zoho binds the dispatcher and the pagination engine to the four
// Zoho products: CRM, Books, People and Desk.
//
// All four share one generic Client; they differ only in their ProductConfig
// (base URL, API version, pagination dialect and response layout).
package zoho

import (
	"fmt"
	"slices"
)

// Product names a Zoho product.
type Product string

const (
	CRM    Product = "crm"
	Books  Product = "books"
	People Product = "people"
	Desk   Product = "desk"
)

// Products lists every supported product.
var Products = []Product{CRM, Books, People, Desk}

// DataCenters lists the Zoho data center domains.
var DataCenters = []string{"com", "eu", "in", "com.au", "jp", "ca", "com.cn", "sa"}

// DefaultDataCenter is the US data center.
const DefaultDataCenter = "com"

// ParseProduct returns the product named s.
func ParseProduct(s string) (Product, error) {
	p := Product(s)
	if !slices.Contains(Products, p) {
		return "", fmt.Errorf("unknown product %q (want one of crm, books, people, desk)", s)
	}
	return p, nil
}

// ValidDataCenter reports whether dc is a known data center domain.
func ValidDataCenter(dc string) bool {
	return slices.Contains(DataCenters, dc)
}

// BaseURL returns https://{product}.zoho.{dataCenter}/api/{version}.
func BaseURL(product Product, dataCenter, version string) string {
	if dataCenter == "" {
		dataCenter = DefaultDataCenter
	}
	return fmt.Sprintf("https://%s.zoho.%s/api/%s", product, dataCenter, version)
}
