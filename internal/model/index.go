package model

// IndexType is the closed set of index types spec.md §3 enumerates across
// the five dialects.
type IndexType string

const (
	IndexNormal       IndexType = "NORMAL"
	IndexBTree        IndexType = "BTREE"
	IndexHash         IndexType = "HASH"
	IndexFullText     IndexType = "FULLTEXT"
	IndexSpatial      IndexType = "SPATIAL"
	IndexGIN          IndexType = "GIN"
	IndexGIST         IndexType = "GIST"
	IndexBRIN         IndexType = "BRIN"
	IndexSPGIST       IndexType = "SPGIST"
	IndexClustered    IndexType = "CLUSTERED"
	IndexNonClustered IndexType = "NONCLUSTERED"
	IndexColumnstore  IndexType = "COLUMNSTORE"
	IndexBitmap       IndexType = "BITMAP"
	IndexFunctional   IndexType = "FUNCTIONAL"
)

// Index is a named, ordered-column index on a table.
type Index struct {
	Name    string    `yaml:"name" json:"name"`
	Columns []string  `yaml:"columns" json:"columns"`
	Unique  bool      `yaml:"unique" json:"unique"`
	Type    IndexType `yaml:"type" json:"type"`
	Comment string    `yaml:"comment,omitempty" json:"comment,omitempty"`
	Sig     string    `yaml:"signature,omitempty" json:"signature,omitempty"`
}

// Signature returns the canonical signature computed by internal/signature;
// empty until assigned.
func (i *Index) Signature() string { return i.Sig }

// SetSignature assigns the canonical signature.
func (i *Index) SetSignature(sig string) { i.Sig = sig }
