package mesh

import "slices"

// ScanPorts returns the ports Open tries and Connect scans for opts.
func ScanPorts(opts ...Option) []uint16 {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return slices.Collect(o.ports())
}
