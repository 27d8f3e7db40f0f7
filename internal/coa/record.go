package coa

import (
	"sort"
	"strings"
	"time"
)

// AnalysisRecord is one certificate of analysis as served to the storefront.
type AnalysisRecord struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Product     string `json:"product"`
	BatchNumber string `json:"batchNumber"`
	PDFLink     string `json:"pdfLink"`
	BestByDate  string `json:"bestByDate"`
}

// Metaobject field keys.
const (
	FieldDate        = "date"
	FieldProductName = "product_name"
	FieldBatchNumber = "batch_number"
	FieldPDFLink     = "pdf_link"
	FieldBestByDate  = "best_by_date"
)

type MetaobjectNode struct {
	ID     string            `json:"id"`
	Fields []MetaobjectField `json:"fields"`
}

type MetaobjectField struct {
	Key       string          `json:"key"`
	Value     string          `json:"value"`
	Reference *FieldReference `json:"reference,omitempty"`
}

// FieldReference is set when a field points at an uploaded file rather than
// holding a literal value.
type FieldReference struct {
	URL   string `json:"url,omitempty"`
	Image *struct {
		URL string `json:"url"`
	} `json:"image,omitempty"`
}

func (r *FieldReference) fileURL() string {
	if r == nil {
		return ""
	}
	if r.URL != "" {
		return r.URL
	}
	if r.Image != nil {
		return r.Image.URL
	}
	return ""
}

// Normalize maps a metaobject node to a record. ok is false when date or
// product is empty; such nodes are dropped, not errors.
func Normalize(node MetaobjectNode) (rec AnalysisRecord, ok bool) {
	rec.ID = node.ID
	for _, f := range node.Fields {
		v := strings.TrimSpace(f.Value)
		switch f.Key {
		case FieldDate:
			rec.Date = v
		case FieldProductName:
			rec.Product = v
		case FieldBatchNumber:
			rec.BatchNumber = v
		case FieldPDFLink:
			if u := f.Reference.fileURL(); u != "" {
				v = u
			}
			rec.PDFLink = v
		case FieldBestByDate:
			rec.BestByDate = v
		}
	}

	if rec.Date == "" || rec.Product == "" {
		return AnalysisRecord{}, false
	}
	return rec, true
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortByDateDesc orders records newest first. Unparsable dates sort last;
// ties keep their incoming order.
func SortByDateDesc(records []AnalysisRecord) {
	type keyed struct {
		t  time.Time
		ok bool
	}
	keys := make(map[string]keyed, len(records))
	key := func(s string) keyed {
		k, seen := keys[s]
		if !seen {
			t, ok := parseDate(s)
			k = keyed{t: t, ok: ok}
			keys[s] = k
		}
		return k
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := key(records[i].Date), key(records[j].Date)
		switch {
		case a.ok && b.ok:
			return a.t.After(b.t)
		case a.ok:
			return true
		default:
			return false
		}
	})
}
