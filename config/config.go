// Package config holds the per-provider configuration value objects. Every
// field is trimmed and length/format-checked before an adapter is allowed to
// exist; an adapter never holds an invalid configuration. A failed check is
// reported as an InvalidConfig taxonomy error carrying the failed fields.
package config

import (
	"sort"
	"strings"

	apperrors "github.com/atticlab/libface/errors"
	"github.com/atticlab/libface/utils"
)

// validate runs the struct tags and translates failures into the shared
// taxonomy, with the per-field messages as detail.
func validate(cfg interface{}) error {
	err := utils.ValidateStruct(cfg)
	if err == nil {
		return nil
	}
	if !utils.IsValidationError(err) {
		return apperrors.Wrap(apperrors.KindInvalidConfig, err)
	}

	fields := utils.GetValidationFields(err)
	details := make([]string, 0, len(fields))
	for _, msg := range fields {
		details = append(details, msg)
	}
	sort.Strings(details)
	return apperrors.WithDetail(apperrors.KindInvalidConfig, strings.Join(details, "; "))
}

// Kairos holds Kairos API configuration.
type Kairos struct {
	// ApplicationID is the 8 character Kairos application id.
	ApplicationID string `validate:"required,len=8"`

	// ApplicationKey is the 32 character Kairos application key.
	ApplicationKey string `validate:"required,len=32"`

	// GalleryName scopes face enrollment on the Kairos side.
	GalleryName string `validate:"required"`

	// Limit is the maximum response count before the caller alerts.
	Limit int `validate:"gte=0"`

	// BaseURL overrides the Kairos API endpoint. Intended for tests.
	BaseURL string `validate:"omitempty,url"`
}

// Validate normalizes the fields in place and checks them.
func (c *Kairos) Validate() error {
	c.ApplicationID = strings.ToLower(strings.TrimSpace(c.ApplicationID))
	c.ApplicationKey = strings.ToLower(strings.TrimSpace(c.ApplicationKey))
	c.GalleryName = strings.TrimSpace(c.GalleryName)
	return validate(c)
}

// VisionLabs holds VisionLabs (Luna) API configuration.
type VisionLabs struct {
	// Token is the 36 character auth token.
	Token string `validate:"required,len=36"`

	// DescriptorListID is the list descriptors are attached to.
	DescriptorListID string `validate:"required,len=36"`

	// PersonListID is the list persons are attached to.
	PersonListID string `validate:"required,len=36"`

	// Limit is the maximum response count before the caller alerts.
	Limit int `validate:"gte=0"`

	// BaseURL overrides the VisionLabs API endpoint. Intended for tests.
	BaseURL string `validate:"omitempty,url"`
}

// Validate normalizes the fields in place and checks them.
func (c *VisionLabs) Validate() error {
	c.Token = strings.ToLower(strings.TrimSpace(c.Token))
	c.DescriptorListID = strings.ToLower(strings.TrimSpace(c.DescriptorListID))
	c.PersonListID = strings.TrimSpace(c.PersonListID)
	return validate(c)
}

// FindFace holds FindFace API configuration.
type FindFace struct {
	// Token is the 32 character API token.
	Token string `validate:"required,len=32"`

	// GalleryName scopes face enrollment on the FindFace side. The gallery
	// is created on first use if it does not already exist.
	GalleryName string `validate:"required"`

	// Limit is the maximum response count before the caller alerts.
	Limit int `validate:"gte=0"`

	// BaseURL overrides the FindFace API endpoint. Intended for tests.
	BaseURL string `validate:"omitempty,url"`
}

// Validate normalizes the fields in place and checks them.
func (c *FindFace) Validate() error {
	c.Token = strings.TrimSpace(c.Token)
	c.GalleryName = strings.TrimSpace(c.GalleryName)
	return validate(c)
}
