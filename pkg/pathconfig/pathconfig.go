// Package pathconfig holds the immutable per-motion-category descriptors
// that every planned path in a layer refers back to: nominal speed, line
// width, whether the category spiralizes, and a short display name used in
// the ";TYPE:" comment the emitter writes on every config change.
package pathconfig

// Config is an immutable descriptor for one motion category (travel, wall,
// infill, skin, support, ...). A zero LineWidth marks a travel config: it
// never carries extrusion and is never the argument to a ";TYPE:" comment.
type Config struct {
	Speed      int    // mm/s
	LineWidth  int    // micrometres; 0 means travel
	Spiralize  bool   // this config produces a continuously rising Z perimeter
	Name       string // short identifier, e.g. "WALL-OUTER", "SKIN"
}

// New builds a Config. Planner and emitter code treats Configs as
// read-only once constructed; callers should keep one instance per motion
// category and share it across every layer.
func New(speed, lineWidth int, name string) *Config {
	return &Config{Speed: speed, LineWidth: lineWidth, Name: name}
}

// NewSpiralize builds a spiralize-enabled Config (vase mode perimeters).
func NewSpiralize(speed, lineWidth int, name string) *Config {
	return &Config{Speed: speed, LineWidth: lineWidth, Spiralize: true, Name: name}
}

// Travel builds the one distinguished travel config a planner instance
// owns: zero line width, no spiralize.
func Travel(speed int) *Config {
	return &Config{Speed: speed, LineWidth: 0, Name: "TRAVEL"}
}

// IsTravel reports whether this config is a non-extruding travel move.
func (c *Config) IsTravel() bool {
	return c.LineWidth == 0
}

// Registry is an optional convenience container mapping short names to the
// Configs a slicer front-end has built for one layer's set of motion
// categories (wall, skin, infill, support, ...). Planner and Emitter never
// require one; callers that juggle many named configs can use it to avoid
// re-deriving the same *Config repeatedly.
type Registry struct {
	byName map[string]*Config
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Config)}
}

// Register stores cfg under its own Name. It panics on a duplicate name,
// since two different speed/width combinations sharing a ";TYPE:" label
// would silently corrupt the resulting G-code's comments.
func (r *Registry) Register(cfg *Config) {
	if _, exists := r.byName[cfg.Name]; exists {
		panic("pathconfig: duplicate config name " + cfg.Name)
	}
	r.byName[cfg.Name] = cfg
}

// Get looks up a previously registered config by name.
func (r *Registry) Get(name string) (*Config, bool) {
	cfg, ok := r.byName[name]
	return cfg, ok
}
