package integration

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestIntegration_ValidationErrors(t *testing.T) {
	u := waitReady(t)
	base := map[string]string{"title": "Lamp", "category": "home", "description": "Bright", "priceAmount": "10"}
	with := func(k, v string) map[string]string {
		m := map[string]string{}
		for bk, bv := range base {
			m[bk] = bv
		}
		m[k] = v
		return m
	}

	cases := []struct {
		name   string
		fields map[string]string
		field  string
	}{
		{"missing_title", with("title", ""), "title"},
		{"negative_price", with("priceAmount", "-1"), "priceAmount"},
		{"unknown_currency", with("priceCurrency", "EUR"), "priceCurrency"},
		{"negative_stock", with("stock", "-3"), "stock"},
		{"long_description", with("description", strings.Repeat("x", 1001)), "description"},
		{"bad_specifications", with("specifications", "[1,2"), "specifications"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, res := send(t, http.MethodPost, u+"/api/products", &alice, tc.fields)
			if code != http.StatusBadRequest || res.Error != "bad_input" {
				t.Fatalf("expected 400 bad_input, got %d %+v", code, res)
			}
			found := false
			for _, f := range res.Fields {
				found = found || f.Field == tc.field
			}
			if !found {
				t.Fatalf("expected field %q in %+v", tc.field, res.Fields)
			}
		})
	}
}

func TestIntegration_AccessControl(t *testing.T) {
	u := waitReady(t)
	p := create(t, u, alice, nil)

	code, res := send(t, http.MethodPatch, u+"/api/products/"+p.ID, nil, map[string]string{"title": "x"})
	if code != http.StatusUnauthorized || res.Error != "unauthenticated" {
		t.Fatalf("anonymous: %d %+v", code, res)
	}
	buyer := seller{id: alice.id, roles: "buyer"}
	code, _ = send(t, http.MethodPatch, u+"/api/products/"+p.ID, &buyer, map[string]string{"title": "x"})
	if code != http.StatusForbidden {
		t.Fatalf("missing role: expected 403, got %d", code)
	}
	code, _ = send(t, http.MethodDelete, u+"/api/products/"+p.ID, &bob, nil)
	if code != http.StatusForbidden {
		t.Fatalf("other seller: expected 403, got %d", code)
	}
}

func TestIntegration_DuplicateSKU(t *testing.T) {
	u := waitReady(t)
	sku := fmt.Sprintf("it-%d", time.Now().UnixNano()%1e9)
	first := create(t, u, alice, map[string]string{"sku": sku})
	if first.SKU != strings.ToUpper(sku) {
		t.Fatalf("sku not normalized: %q", first.SKU)
	}
	code, res := send(t, http.MethodPost, u+"/api/products", &bob, map[string]string{
		"title": "Clone", "category": "kitchen", "description": "Same sku", "priceAmount": "1", "sku": sku,
	})
	if code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %+v", code, res)
	}
}

func TestIntegration_UnknownProductNotFound(t *testing.T) {
	u := waitReady(t)
	code, res := get(t, u+"/api/products/does-not-exist")
	if code != http.StatusNotFound || res.Error != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %+v", code, res)
	}
	code, _ = send(t, http.MethodPatch, u+"/api/products/does-not-exist", &alice, map[string]string{"stock": "1"})
	if code != http.StatusNotFound {
		t.Fatalf("patch unknown: expected 404, got %d", code)
	}
}
