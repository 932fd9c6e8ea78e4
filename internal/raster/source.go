package raster

// Source is one of the three input shapes the reclassifier accepts: a bare
// Array, a labelled *DataArray or a multi-variable *Dataset.
type Source interface {
	sourceKind() string
}

func (Array) sourceKind() string      { return "array" }
func (*DataArray) sourceKind() string { return "data_array" }
func (*Dataset) sourceKind() string   { return "dataset" }

// Kind names the concrete shape of a Source.
func Kind(s Source) string {
	if s == nil {
		return "nil"
	}
	return s.sourceKind()
}
