package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/area"
	"github.com/Carmen-Shannon/oxy-vis/engine/geometry"
	"github.com/Carmen-Shannon/oxy-vis/engine/light"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/samber/lo"
)

var (
	// ErrUnknownMaterial is returned for geometry instances naming a material that is not registered.
	ErrUnknownMaterial = errors.New("unknown material")

	// ErrUnknownLight is returned for light instances naming a light that is not registered.
	ErrUnknownLight = errors.New("unknown light")
)

// LoadParams controls how a scene document is merged into a scene.
type LoadParams struct {
	// Append keeps the current contents. Otherwise the scene is cleared first.
	Append bool

	// NodesNamePrefix places the loaded top-level nodes under a root of that name, created when missing.
	// Area targets are resolved under it too.
	NodesNamePrefix string

	// ShapesNamePrefix is prepended to shape names as "prefix-name".
	ShapesNamePrefix string

	// BaseMatrix is applied on top of the local transform of every loaded top-level node.
	BaseMatrix *mgl32.Mat4

	Dynamic  bool
	Disabled bool

	// Device allocates shape buffers. A nil device keeps shapes on the CPU only.
	Device renderer.Device
}

type document struct {
	Lights     map[string]lightData             `json:"lights"`
	Nodes      map[string]nodeData              `json:"nodes"`
	Areas      []areaData                       `json:"areas"`
	BSPNodes   []bspNodeData                    `json:"bspnodes"`
	Geometries map[string]geometry.ShapeData    `json:"geometries"`
	Materials  map[string]geometry.MaterialData `json:"materials"`
	Effects    map[string]geometry.EffectData   `json:"effects"`
	Images     map[string]string                `json:"images"`
}

type nodeData struct {
	Matrix            []float32                       `json:"matrix"`
	Dynamic           bool                            `json:"dynamic"`
	Disabled          bool                            `json:"disabled"`
	GeometryInstances map[string]geometryInstanceData `json:"geometryinstances"`
	LightInstances    map[string]lightInstanceData    `json:"lightinstances"`
	Nodes             map[string]nodeData             `json:"nodes"`
}

type geometryInstanceData struct {
	Geometry string `json:"geometry"`
	Surface  string `json:"surface"`
	Material string `json:"material"`
	Disabled bool   `json:"disabled"`
}

type lightInstanceData struct {
	Light    string `json:"light"`
	Disabled bool   `json:"disabled"`
}

type lightData struct {
	Type           string    `json:"type"`
	Color          []float32 `json:"color"`
	Intensity      *float32  `json:"intensity"`
	Origin         []float32 `json:"origin"`
	Center         []float32 `json:"center"`
	Target         []float32 `json:"target"`
	Right          []float32 `json:"right"`
	Up             []float32 `json:"up"`
	Start          []float32 `json:"start"`
	End            []float32 `json:"end"`
	Direction      []float32 `json:"direction"`
	HalfExtents    []float32 `json:"halfextents"`
	Radius         float32   `json:"radius"`
	FalloffAngle   float32   `json:"falloff_angle"`
	Material       string    `json:"material"`
	Disabled       bool      `json:"disabled"`
	Dynamic        bool      `json:"dynamic"`
	Shadows        bool      `json:"shadows"`
	DynamicShadows bool      `json:"dynamicshadows"`
	Fog            bool      `json:"fog"`
}

type areaData struct {
	Target  string       `json:"target"`
	Portals []portalData `json:"portals"`
}

type portalData struct {
	Area   int         `json:"area"`
	Points [][]float32 `json:"points"`
}

type bspNodeData struct {
	Plane []float32 `json:"plane"`
	Pos   int       `json:"pos"`
	Neg   int       `json:"neg"`
}

// sortedKeys iterates document maps in a stable order so loads are reproducible.
func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

func (s *sceneImpl) Load(data []byte, params LoadParams) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse scene document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !params.Append {
		s.clear()
	}

	var errs []error
	s.loadMaterials(&doc)
	s.loadLights(&doc)
	errs = s.loadNodes(&doc, params, errs)

	// Area portals are placed by the world transforms of their targets.
	s.updateNodes()
	errs = s.loadAreas(&doc, params, errs)

	s.updateNodes()
	s.staticIndex.Finalize()
	s.dynamicIndex.Finalize()
	s.updateExtents()
	if len(s.areas) > 0 {
		s.initializeAreas()
	}

	log.Printf("[Loader] scene %s loaded %d nodes, %d lights, %d areas, %d shapes (%d errors)",
		s.id, len(s.nodes)-len(s.free), len(s.lights), len(s.areas), len(s.shapes), len(errs))
	return errors.Join(errs...)
}

func (s *sceneImpl) loadMaterials(doc *document) {
	for _, name := range sortedKeys(doc.Materials) {
		if _, ok := s.materials[name]; ok {
			continue
		}
		s.materials[name] = geometry.CreateMaterial(name, doc.Materials[name], doc.Effects, doc.Images)
	}
}

func (s *sceneImpl) loadLights(doc *document) {
	for _, name := range sortedKeys(doc.Lights) {
		if _, ok := s.lights[name]; ok {
			continue
		}
		l := s.createLight(name, doc.Lights[name])
		// Names were checked above, addLight cannot fail here.
		_ = s.addLight(l)
	}
}

func (s *sceneImpl) createLight(name string, ld lightData) light.Light {
	lightType := light.LightTypePoint
	switch ld.Type {
	case "directional":
		lightType = light.LightTypeDirectional
	case "spot":
		lightType = light.LightTypeSpot
	case "ambient":
		lightType = light.LightTypeAmbient
	}

	vec := common.Vec3FromSlice
	var opts []light.LightBuilderOption
	if len(ld.Color) >= 3 {
		opts = append(opts, light.WithColor(ld.Color[0], ld.Color[1], ld.Color[2]))
	}
	if ld.Intensity != nil {
		opts = append(opts, light.WithIntensity(*ld.Intensity))
	}
	if ld.Origin != nil {
		opts = append(opts, light.WithOrigin(vec(ld.Origin)))
	}
	if ld.Center != nil {
		opts = append(opts, light.WithCenter(vec(ld.Center)))
	}
	if ld.Target != nil {
		opts = append(opts, light.WithTarget(vec(ld.Target)))
	}
	if ld.Right != nil && ld.Up != nil && ld.End != nil {
		opts = append(opts, light.WithSpotFrustum(vec(ld.Right), vec(ld.Up), vec(ld.End)))
	}
	if ld.Start != nil {
		opts = append(opts, light.WithSpotStart(vec(ld.Start)))
	}
	if ld.Direction != nil {
		d := vec(ld.Direction)
		opts = append(opts, light.WithDirection(d[0], d[1], d[2]))
	}
	if ld.HalfExtents != nil {
		opts = append(opts, light.WithHalfExtents(vec(ld.HalfExtents)))
	}
	if ld.Radius > 0 {
		opts = append(opts, light.WithRadius(ld.Radius))
	}
	if ld.FalloffAngle > 0 {
		opts = append(opts, light.WithFalloffAngle(ld.FalloffAngle))
	}
	if ld.Shadows || ld.DynamicShadows {
		opts = append(opts, light.WithCastsShadows(ld.Shadows, ld.DynamicShadows))
	}

	fog := ld.Fog
	if m, ok := s.materials[ld.Material]; ok && m.Meta != nil {
		if f, ok := m.Meta["fog"].(bool); ok && f {
			fog = true
		}
	}
	opts = append(opts,
		light.WithDisabled(ld.Disabled),
		light.WithDynamic(ld.Dynamic),
		light.WithFog(fog),
	)
	return light.NewLight(name, lightType, opts...)
}

func (s *sceneImpl) loadNodes(doc *document, params LoadParams, errs []error) []error {
	parent := noNode
	if params.NodesNamePrefix != "" {
		if id, ok := s.rootNames[params.NodesNamePrefix]; ok {
			parent = id
		} else {
			h := s.createNode(WithNodeName(params.NodesNamePrefix), WithDynamic(params.Dynamic))
			// The name is free, so registration cannot fail.
			_ = s.addRootNode(h)
			parent = h.ID
		}
	}

	for _, name := range sortedKeys(doc.Nodes) {
		nd := doc.Nodes[name]
		h, nodeErrs := s.loadNode(doc, params, name, nd, false, false)
		errs = append(errs, nodeErrs...)

		if params.BaseMatrix != nil {
			n := &s.nodes[h.ID]
			if n.hasLocal {
				n.local = params.BaseMatrix.Mul4(n.local)
			} else {
				n.local = *params.BaseMatrix
				n.hasLocal = true
			}
		}

		var err error
		if parent != noNode {
			err = s.addChild(s.handle(parent), h)
		} else {
			err = s.addRootNode(h)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", name, err))
			_ = s.destroyNode(h)
		}
	}
	return errs
}

// loadNode creates a detached node hierarchy from its document entry. Instances that cannot be
// resolved are skipped and reported, the rest of the node still loads.
func (s *sceneImpl) loadNode(doc *document, params LoadParams, name string, nd nodeData, parentDynamic, parentDisabled bool) (NodeHandle, []error) {
	var errs []error
	dynamic := nd.Dynamic || parentDynamic || params.Dynamic
	disabled := nd.Disabled || parentDisabled || params.Disabled

	opts := []NodeOption{WithNodeName(name), WithDynamic(dynamic), WithDisabled(disabled)}
	if nd.Matrix != nil {
		m, ok := common.Mat4FromSlice(nd.Matrix)
		if ok {
			opts = append(opts, WithLocalTransform(m))
		} else {
			errs = append(errs, fmt.Errorf("node %q: matrix has %d values, want 12 or 16", name, len(nd.Matrix)))
		}
	}
	h := s.createNode(opts...)

	for _, giName := range sortedKeys(nd.GeometryInstances) {
		gi := nd.GeometryInstances[giName]
		r, err := s.loadGeometryInstance(doc, params, gi)
		if err != nil {
			log.Printf("[Loader] node %q instance %q skipped: %v", name, giName, err)
			errs = append(errs, fmt.Errorf("node %q instance %q: %w", name, giName, err))
			continue
		}
		_ = s.addRenderable(h, r)
	}

	for _, liName := range sortedKeys(nd.LightInstances) {
		lid := nd.LightInstances[liName]
		l, ok := s.lights[lid.Light]
		if !ok {
			errs = append(errs, fmt.Errorf("node %q light instance %q: %w: %q", name, liName, ErrUnknownLight, lid.Light))
			continue
		}
		// Global lights apply everywhere and are never attached.
		if l.IsGlobal() {
			continue
		}
		li := NewLightInstance(l)
		li.Disabled = li.Disabled || lid.Disabled
		_ = s.addLightInstance(h, li)
	}

	for _, childName := range sortedKeys(nd.Nodes) {
		child, childErrs := s.loadNode(doc, params, childName, nd.Nodes[childName], dynamic, disabled)
		errs = append(errs, childErrs...)
		// Sibling names come from map keys and cannot clash.
		_ = s.addChild(h, child)
	}
	return h, errs
}

func (s *sceneImpl) loadGeometryInstance(doc *document, params LoadParams, gi geometryInstanceData) (*Renderable, error) {
	shapeName := gi.Geometry
	if params.ShapesNamePrefix != "" {
		shapeName = params.ShapesNamePrefix + "-" + gi.Geometry
	}

	shape, ok := s.shapes[shapeName]
	if !ok {
		sd, ok := doc.Geometries[gi.Geometry]
		if !ok {
			return nil, fmt.Errorf("%w: %q", geometry.ErrUnknownShape, gi.Geometry)
		}
		var err error
		shape, err = geometry.LoadShape(shapeName, sd, params.Device)
		if err != nil {
			return nil, err
		}
		s.shapes[shapeName] = shape
	}

	var material *geometry.Material
	if gi.Material != "" {
		if material, ok = s.materials[gi.Material]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMaterial, gi.Material)
		}
	}

	var surface *geometry.Surface
	if gi.Surface != "" {
		surface = shape.Surface(gi.Surface)
	}
	r := NewRenderable(shape, surface, material)
	r.Disabled = gi.Disabled
	return r, nil
}

func (s *sceneImpl) loadAreas(doc *document, params LoadParams, errs []error) []error {
	if len(doc.Areas) == 0 {
		return errs
	}

	areas := make([]area.Area, 0, len(doc.Areas))
	states := make([]areaState, 0, len(doc.Areas))
	skipped := 0
	for fa, ad := range doc.Areas {
		targetName := ad.Target
		if params.NodesNamePrefix != "" {
			targetName = params.NodesNamePrefix + "/" + targetName
		}
		target, ok := s.findNode(targetName)
		if !ok {
			log.Printf("[Loader] area %d skipped, missing target %q", fa, targetName)
			errs = append(errs, fmt.Errorf("%w: area %d target %q not found", ErrInvalidState, fa, targetName))
			skipped++
			continue
		}

		world := s.nodes[target.ID].world
		a := area.Area{Target: targetName, Extents: common.EmptyExtents()}
		for pi, pd := range ad.Portals {
			points := make([]mgl32.Vec3, len(pd.Points))
			for i, p := range pd.Points {
				points[i] = world.Mul4x1(common.Vec3FromSlice(p).Vec4(1)).Vec3()
			}
			// Portal targets count areas of this document, minus the areas skipped so far.
			portal, err := area.NewPortal(pd.Area-skipped, points)
			if err != nil {
				log.Printf("[Loader] area %d portal %d skipped: %v", fa, pi, err)
				continue
			}
			a.Portals = append(a.Portals, portal)
			a.Extents = a.Extents.Union(portal.Extents)
		}
		areas = append(areas, a)
		states = append(states, areaState{target: target, baseExtents: a.Extents})
	}

	nodes := make([]area.BSPNode, 0, len(doc.BSPNodes))
	for i, bn := range doc.BSPNodes {
		if len(bn.Plane) != 4 {
			errs = append(errs, fmt.Errorf("bsp node %d: plane has %d values, want 4", i, len(bn.Plane)))
			return errs
		}
		nodes = append(nodes, area.BSPNode{
			Plane: common.NewPlane(bn.Plane[0], bn.Plane[1], bn.Plane[2], -bn.Plane[3]),
			Pos:   area.BSPChildFromFile(bn.Pos),
			Neg:   area.BSPChildFromFile(bn.Neg),
		})
	}

	s.graph.Append(areas, nodes)
	s.areas = append(s.areas, states...)
	if err := s.graph.Validate(); err != nil {
		log.Printf("[Loader] discarding areas: %v", err)
		errs = append(errs, err)
		s.clearAreas()
	}
	return errs
}
