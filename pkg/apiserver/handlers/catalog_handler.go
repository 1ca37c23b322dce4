package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codehaven/codehaven/pkg/catalog"
	"github.com/codehaven/codehaven/pkg/model"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

type tierResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CPUCores     int     `json:"cpu_cores"`
	MemoryGB     int     `json:"memory_gb"`
	StorageGB    int     `json:"storage_gb"`
	PriceMonthly float64 `json:"price_monthly"`
	IsDefault    bool    `json:"is_default"`
	SortOrder    int     `json:"sort_order"`
}

type addonResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	RequiresGPU    bool    `json:"requires_gpu"`
	RequiresFlavor *string `json:"requires_flavor,omitempty"`
	Port           *int    `json:"port,omitempty"`
	PriceMonthly   float64 `json:"price_monthly"`
}

func (h *CatalogHandler) ListTiers(c *gin.Context) {
	tiers := h.catalog.Tiers()
	response := make([]tierResponse, 0, len(tiers))
	for _, tier := range tiers {
		response = append(response, mapTier(tier))
	}
	c.JSON(http.StatusOK, gin.H{"tiers": response})
}

func (h *CatalogHandler) ListAddons(c *gin.Context) {
	addons := h.catalog.Addons()
	response := make([]addonResponse, 0, len(addons))
	for _, addon := range addons {
		response = append(response, mapAddon(addon))
	}
	c.JSON(http.StatusOK, gin.H{"addons": response})
}

func mapTier(tier model.ResourceTier) tierResponse {
	return tierResponse{
		ID:           tier.ID,
		Name:         tier.Name,
		CPUCores:     tier.CPUCores,
		MemoryGB:     tier.MemoryGB,
		StorageGB:    tier.StorageGB,
		PriceMonthly: tier.PriceMonthly,
		IsDefault:    tier.IsDefault,
		SortOrder:    tier.SortOrder,
	}
}

func mapAddon(addon model.Addon) addonResponse {
	return addonResponse{
		ID:             addon.ID,
		Name:           addon.Name,
		Category:       string(addon.Category),
		RequiresGPU:    addon.RequiresGPU,
		RequiresFlavor: addon.RequiresFlavor,
		Port:           addon.Port,
		PriceMonthly:   addon.PriceMonthly,
	}
}
