package geometry

import (
	"maps"
)

// Material is a named binding of an effect, its technique and the parameter values it is drawn with.
type Material struct {
	Name          string
	EffectName    string
	TechniqueName string
	Parameters    map[string]any
	TextureNames  map[string]string // parameter name to texture file, nil when the material has none
	Meta          map[string]any
}

// NewMaterial creates a material whose technique is named after its effect.
//
// Parameters:
//   - name: the material name
//   - effect: the effect (and technique) name
//   - params: technique parameter values, copied
//
// Returns:
//   - *Material: the material
func NewMaterial(name, effect string, params map[string]any) *Material {
	m := &Material{
		Name:          name,
		EffectName:    effect,
		TechniqueName: effect,
		Parameters:    make(map[string]any, len(params)),
	}
	maps.Copy(m.Parameters, params)
	return m
}

// CreateMaterial builds a material from its document entry. Effect parameters are applied
// first and overridden by the material's own. String parameters name textures: they are
// resolved through images, recorded in TextureNames and left nil in Parameters. Effect meta
// fills in keys the material meta does not set. A "technique" meta string overrides the
// technique name, which otherwise follows the effect type.
//
// Parameters:
//   - name: the material name
//   - data: the document material
//   - effects: the document effects, may be nil
//   - images: the document image table, may be nil
//
// Returns:
//   - *Material: the material
func CreateMaterial(name string, data MaterialData, effects map[string]EffectData, images map[string]string) *Material {
	effectName := data.Effect
	if effectName == "" {
		effectName = "default"
	}

	m := &Material{
		Name:       name,
		EffectName: effectName,
		Parameters: make(map[string]any),
	}

	var effectMeta map[string]any
	if effect, ok := effects[effectName]; ok {
		m.applyParameters(effect.Parameters, images)
		if effect.Type != "" {
			m.EffectName = effect.Type
		}
		effectMeta = effect.Meta
	}
	m.applyParameters(data.Parameters, images)

	switch {
	case data.Meta != nil:
		m.Meta = maps.Clone(data.Meta)
		for k, v := range effectMeta {
			if _, ok := m.Meta[k]; !ok {
				m.Meta[k] = v
			}
		}
	case effectMeta != nil:
		m.Meta = maps.Clone(effectMeta)
	}

	m.TechniqueName = m.EffectName
	if t, ok := m.Meta["technique"].(string); ok && t != "" {
		m.TechniqueName = t
	}
	return m
}

func (m *Material) applyParameters(params map[string]any, images map[string]string) {
	for p, v := range params {
		file, isTexture := v.(string)
		if !isTexture {
			m.Parameters[p] = v
			continue
		}
		if mapped, ok := images[file]; ok {
			file = mapped
		}
		if m.TextureNames == nil {
			m.TextureNames = make(map[string]string)
		}
		m.TextureNames[p] = file
		m.Parameters[p] = nil
	}
}
