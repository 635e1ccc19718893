package app

import "github.com/tavolo/tavolo/internal/cache"

const tenantNamespace = "tenant"

func SettingsKey(tenantID string) string {
	return cache.Key(tenantNamespace, tenantID, "settings")
}

func ProductsKey(tenantID string, onlyAvailable bool) string {
	if onlyAvailable {
		return cache.Key(tenantNamespace, tenantID, "products", "available")
	}
	return cache.Key(tenantNamespace, tenantID, "products", "all")
}

func StatusKey(tenantID string) string {
	return cache.Key(tenantNamespace, tenantID, "status")
}

// Matches every product listing of the tenant
func productsKeyPrefix(tenantID string) string {
	return cache.KeyPrefix(tenantNamespace, tenantID, "products")
}

// Matches every cache entry of the tenant, and no entries of tenants whose id merely starts with tenantID
func tenantKeyPrefix(tenantID string) string {
	return cache.KeyPrefix(tenantNamespace, tenantID)
}
