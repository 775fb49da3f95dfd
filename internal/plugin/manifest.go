package plugin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/grcorsair/corsair-sub002/internal/types"
)

// ManifestSuffix is the fixed filename convention for provider manifests.
// Discovery only considers files ending in this suffix.
const ManifestSuffix = "-manifest.json"

// IntensityRange bounds the caller-supplied intensity for one attack vector.
type IntensityRange struct {
	Min     int `json:"min" validate:"min=0,max=10"`
	Max     int `json:"max" validate:"min=0,max=10"`
	Default int `json:"default" validate:"min=0,max=10"`
}

// AttackVector is one declarative attack a provider supports.
type AttackVector struct {
	ID                  string          `json:"id" validate:"required"`
	Name                string          `json:"name" validate:"required"`
	Severity            types.Severity  `json:"severity" validate:"required"`
	MitreMapping        string          `json:"mitreMapping,omitempty"`
	RequiredPermissions []string        `json:"requiredPermissions,omitempty"`
	Intensity           *IntensityRange `json:"intensity,omitempty"`
}

// FrameworkMappings carries plugin-provided compliance tables. Keys are
// drift-field names or attack-vector ids; values are framework identifier
// chains (technique, control, criteria, ...).
type FrameworkMappings struct {
	Drift         map[string][]string `json:"drift,omitempty"`
	AttackVectors map[string][]string `json:"attackVectors,omitempty"`
}

// Manifest describes a provider's available attack vectors and compliance
// mappings. Manifests are loaded from declarative JSON files, validated on
// load, and immutable once registered.
type Manifest struct {
	ProviderID        string             `json:"providerId" validate:"required"`
	ProviderName      string             `json:"providerName" validate:"required"`
	Version           string             `json:"version" validate:"required"`
	EntryPoint        string             `json:"entryPoint,omitempty"`
	AttackVectors     []AttackVector     `json:"attackVectors" validate:"required,min=1,dive"`
	FrameworkMappings *FrameworkMappings `json:"frameworkMappings,omitempty"`
}

// validate is shared: validator.Validate is safe for concurrent use and
// caches struct metadata.
var validate = validator.New()

// ParseManifest decodes and validates a manifest at the deserialization
// boundary, so nothing downstream ever sees a structurally invalid one.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, types.WrapError(types.PLUGIN_MANIFEST_INVALID, "unparsable manifest", err)
	}

	if err := validate.Struct(&m); err != nil {
		return nil, types.WrapError(types.PLUGIN_MANIFEST_INVALID,
			"manifest failed schema validation", simplifyValidationError(err))
	}

	for _, v := range m.AttackVectors {
		if !v.Severity.IsValid() {
			return nil, types.NewError(types.PLUGIN_MANIFEST_INVALID,
				fmt.Sprintf("attack vector %q has invalid severity %q", v.ID, v.Severity))
		}
		if v.Intensity != nil && v.Intensity.Min > v.Intensity.Max {
			return nil, types.NewError(types.PLUGIN_MANIFEST_INVALID,
				fmt.Sprintf("attack vector %q has inverted intensity range", v.ID))
		}
	}

	return &m, nil
}

// Vector returns the attack vector with the given id, if declared.
func (m *Manifest) Vector(id string) (AttackVector, bool) {
	for _, v := range m.AttackVectors {
		if v.ID == id {
			return v, true
		}
	}
	return AttackVector{}, false
}

// simplifyValidationError flattens validator errors into a readable cause.
func simplifyValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var fields []string
	for _, e := range validationErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}
