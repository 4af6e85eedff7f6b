package zoho

import (
	"strings"
	"testing"
)

func TestParseProduct(t *testing.T) {
	for _, p := range Products {
		got, err := ParseProduct(string(p))
		if err != nil || got != p {
			t.Errorf("ParseProduct(%q) = %q, %v", p, got, err)
		}
	}
	if _, err := ParseProduct("mail"); err == nil {
		t.Error("ParseProduct(mail) should fail")
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		product    Product
		dataCenter string
		want       string
	}{
		{CRM, "com", "https://crm.zoho.com/api/v2"},
		{Books, "eu", "https://books.zoho.eu/api/v3"},
		{People, "in", "https://people.zoho.in/api/v1"},
		{Desk, "com.au", "https://desk.zoho.com.au/api/v1"},
		{CRM, "", "https://crm.zoho.com/api/v2"},
	}

	for _, tt := range tests {
		cfg := DefaultProductConfig(tt.product, tt.dataCenter)
		if got := cfg.URL(); got != tt.want {
			t.Errorf("URL(%s, %q) = %q, want %q", tt.product, tt.dataCenter, got, tt.want)
		}
	}
}

func TestProductConfig_BaseURLOverride(t *testing.T) {
	cfg := DefaultProductConfig(CRM, "com")
	cfg.BaseURL = "https://www.zohoapis.com/crm/v2"

	if got := cfg.URL(); got != "https://www.zohoapis.com/crm/v2" {
		t.Errorf("URL() = %q", got)
	}
}

func TestProductConfig_WithOrganization(t *testing.T) {
	books := DefaultProductConfig(Books, "com").WithOrganization("10234695")
	if got := books.Params.Get("organization_id"); got != "10234695" {
		t.Errorf("Books organization_id = %q", got)
	}
	if books.Organization() != "10234695" {
		t.Errorf("Books Organization() = %q", books.Organization())
	}

	desk := DefaultProductConfig(Desk, "com").WithOrganization("6543")
	if got := desk.Header.Get("orgId"); got != "6543" {
		t.Errorf("Desk orgId = %q", got)
	}
	if desk.Organization() != "6543" {
		t.Errorf("Desk Organization() = %q", desk.Organization())
	}

	crm := DefaultProductConfig(CRM, "com").WithOrganization("1")
	if crm.Params != nil || crm.Header != nil {
		t.Error("CRM should not be scoped by an organization parameter")
	}
}

func TestProductConfig_WithOrganizationDoesNotShare(t *testing.T) {
	base := DefaultProductConfig(Books, "com").WithOrganization("a")
	other := base.WithOrganization("b")

	if base.Organization() != "a" || other.Organization() != "b" {
		t.Errorf("organizations = %q, %q, want a, b", base.Organization(), other.Organization())
	}
}

func TestProductConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ProductConfig)
		wantErr string
	}{
		{"valid", func(*ProductConfig) {}, ""},
		{"no product", func(c *ProductConfig) { c.Product = "" }, "product is required"},
		{"no dialect", func(c *ProductConfig) { c.Dialect = nil }, "pagination dialect is required"},
		{"no version", func(c *ProductConfig) { c.Version = "" }, "version is required"},
		{"bad data center", func(c *ProductConfig) { c.DataCenter = "moon" }, "unknown data center"},
		{"override skips version", func(c *ProductConfig) { c.Version = ""; c.BaseURL = "http://localhost" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultProductConfig(CRM, "com")
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
