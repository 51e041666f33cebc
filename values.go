package monitor

// Value is a metric payload produced by a Calculator.
// Fields exposes the numeric parts of the payload for time-series stores.
type Value interface {
	Fields() map[string]float64
}

// Percent is an integer percentage in [0,100]
type Percent int

// Fields implements Value
func (p Percent) Fields() map[string]float64 {
	return map[string]float64{"value": float64(p)}
}

// DiskUsage is free and used space in megabytes
type DiskUsage struct {
	Free int64 `json:"free"`
	Used int64 `json:"used"`
}

// Fields implements Value
func (d DiskUsage) Fields() map[string]float64 {
	return map[string]float64{"free": float64(d.Free), "used": float64(d.Used)}
}

// MemoryUsage is free and total physical memory in megabytes
type MemoryUsage struct {
	FreeMem  float64 `json:"freemem"`
	TotalMem float64 `json:"totalmem"`
}

// Fields implements Value
func (m MemoryUsage) Fields() map[string]float64 {
	return map[string]float64{"freemem": m.FreeMem, "totalmem": m.TotalMem}
}

// ProcessUsage describes the sampler process itself
type ProcessUsage struct {
	RSS        float64 `json:"rss"`
	HeapInUse  float64 `json:"heap"`
	Goroutines int     `json:"goroutines"`
}

// Fields implements Value
func (p ProcessUsage) Fields() map[string]float64 {
	return map[string]float64{
		"rss":        p.RSS,
		"heap":       p.HeapInUse,
		"goroutines": float64(p.Goroutines),
	}
}

const megabyte = 1024 * 1024
