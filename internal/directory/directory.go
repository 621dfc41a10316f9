// Package directory provides vendor discovery: given a negotiation flow type,
// which vendors should be asked for a quote.
package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/isoko-app/isoko/internal/config"
	"github.com/isoko-app/isoko/internal/fault"
	"github.com/isoko-app/isoko/internal/models"
	"gorm.io/gorm"
)

// VendorContact is the contact card handed to the messaging layer for each
// candidate vendor.
type VendorContact struct {
	ID         string
	Name       string
	Phone      string
	VendorType string
	Metadata   models.JSONMap
}

// Directory finds candidate vendors for a negotiation. Implementations must
// treat an empty result as legitimate, not an error.
type Directory interface {
	FindVendors(ctx context.Context, flowType string, requestData models.JSONMap) ([]VendorContact, error)
}

// DB is the default Directory backed by the vendors table. External
// discovery services can replace it behind the interface.
type DB struct {
	db *gorm.DB
}

// NewDB creates a table-backed Directory.
func NewDB(db *gorm.DB) *DB {
	return &DB{db: db}
}

// FindVendors returns the active vendors registered for the flow type. The
// request payload is accepted for interface compatibility; the table-backed
// directory does not inspect it.
func (d *DB) FindVendors(ctx context.Context, flowType string, _ models.JSONMap) ([]VendorContact, error) {
	var vendors []models.Vendor
	if err := d.db.WithContext(ctx).
		Where("flow_type = ? AND active = ?", flowType, true).
		Order("created_at ASC").Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("directory: find vendors for %s: %w", flowType, err)
	}

	contacts := make([]VendorContact, 0, len(vendors))
	for _, v := range vendors {
		contacts = append(contacts, VendorContact{
			ID:         v.ID,
			Name:       v.Name,
			Phone:      v.Phone,
			VendorType: v.VendorType,
			Metadata:   v.Metadata,
		})
	}
	return contacts, nil
}

// RegisterOpts holds parameters for adding a vendor to the directory.
type RegisterOpts struct {
	Name       string
	Phone      string
	VendorType string
	FlowType   string
	Metadata   models.JSONMap
}

// GenerateID creates a unique vendor ID in vd-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("directory: generate ID: %w", err)
	}
	return "vd-" + hex.EncodeToString(b)[:5], nil
}

// Register adds an active vendor to the directory.
func Register(db *gorm.DB, opts RegisterOpts) (*models.Vendor, error) {
	if opts.Name == "" {
		return nil, fault.Validation("directory: vendor name is required")
	}
	if opts.Phone == "" {
		return nil, fault.Validation("directory: vendor phone is required")
	}
	if opts.FlowType == "" {
		return nil, fault.Validation("directory: flow type is required")
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	v := models.Vendor{
		ID:         id,
		Name:       opts.Name,
		Phone:      opts.Phone,
		VendorType: opts.VendorType,
		FlowType:   opts.FlowType,
		Active:     true,
		Metadata:   opts.Metadata,
	}
	if err := db.Create(&v).Error; err != nil {
		return nil, fmt.Errorf("directory: register %q: %w", opts.Name, err)
	}
	return &v, nil
}

// List returns vendors, optionally filtered by flow type.
func List(db *gorm.DB, flowType string) ([]models.Vendor, error) {
	q := db.Order("flow_type ASC, created_at ASC")
	if flowType != "" {
		q = q.Where("flow_type = ?", flowType)
	}
	var vendors []models.Vendor
	if err := q.Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("directory: list vendors: %w", err)
	}
	return vendors, nil
}

// Deactivate removes a vendor from discovery without deleting its row.
func Deactivate(db *gorm.DB, id string) error {
	result := db.Model(&models.Vendor{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("directory: deactivate %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fault.NotFound("vendor", id)
	}
	return nil
}

// Seed upserts vendors from configuration, keyed by phone + flow type so
// repeated migrations stay idempotent.
func Seed(db *gorm.DB, vendors []config.VendorConfig) error {
	for _, vc := range vendors {
		var existing models.Vendor
		err := db.Where("phone = ? AND flow_type = ?", vc.Phone, vc.FlowType).First(&existing).Error
		if err == nil {
			if err := db.Model(&existing).Updates(map[string]interface{}{
				"name":        vc.Name,
				"vendor_type": vc.VendorType,
				"active":      true,
				"metadata":    models.JSONMap(vc.Metadata),
			}).Error; err != nil {
				return fmt.Errorf("directory: update seeded vendor %q: %w", vc.Name, err)
			}
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("directory: check seeded vendor %q: %w", vc.Name, err)
		}
		if _, err := Register(db, RegisterOpts{
			Name:       vc.Name,
			Phone:      vc.Phone,
			VendorType: vc.VendorType,
			FlowType:   vc.FlowType,
			Metadata:   models.JSONMap(vc.Metadata),
		}); err != nil {
			return err
		}
	}
	return nil
}
