// -----------------------------------------------------------------------
// Master data import - seeds patents, claims, companies and products from YAML
// -----------------------------------------------------------------------

package masterdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/models"
)

// document is the YAML layout. Nested "claims" on a patent and "facts" on a
// product are split off into their own records.
type document struct {
	Patents   []map[string]any `yaml:"patents"`
	Companies []map[string]any `yaml:"companies"`
	Products  []map[string]any `yaml:"products"`
}

// ImportSummary counts the records written by Import
type ImportSummary struct {
	Patents         int `json:"patents"`
	Claims          int `json:"claims"`
	Companies       int `json:"companies"`
	Products        int `json:"products"`
	ProductVersions int `json:"product_versions"`
}

// Importer writes master data documents into storage
type Importer struct {
	storage interfaces.MasterDataStorage
	logger  arbor.ILogger
}

func NewImporter(storage interfaces.MasterDataStorage, logger arbor.ILogger) *Importer {
	return &Importer{storage: storage, logger: logger}
}

// Import reads one YAML document and upserts every record in it.
// The first failing record aborts the import; earlier records stay written.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse master data: %w", err)
	}

	summary := &ImportSummary{}

	for idx, raw := range doc.Patents {
		claims := models.AsList(raw["claims"])
		delete(raw, "claims")

		var patent models.Patent
		if err := decodeRecord(raw, &patent); err != nil {
			return summary, fmt.Errorf("patent %d: %w", idx, err)
		}
		if err := i.storage.SavePatent(ctx, &patent); err != nil {
			return summary, err
		}
		summary.Patents++

		for _, c := range claims {
			var claim models.PatentClaim
			if err := decodeRecord(c, &claim); err != nil {
				return summary, fmt.Errorf("patent %s claim: %w", patent.PatentID, err)
			}
			claim.PatentID = patent.PatentID
			if claim.ID == "" {
				// Stable id so re-imports replace claims instead of duplicating them
				claim.ID = fmt.Sprintf("%s_claim%d", patent.PatentID, claim.ClaimNo)
			}
			if err := i.storage.SaveClaim(ctx, &claim); err != nil {
				return summary, err
			}
			summary.Claims++
		}
	}

	for idx, raw := range doc.Companies {
		var company models.Company
		if err := decodeRecord(raw, &company); err != nil {
			return summary, fmt.Errorf("company %d: %w", idx, err)
		}
		if err := i.storage.SaveCompany(ctx, &company); err != nil {
			return summary, err
		}
		summary.Companies++
	}

	for idx, raw := range doc.Products {
		facts, hasFacts := raw["facts"]
		delete(raw, "facts")

		var product models.Product
		if err := decodeRecord(raw, &product); err != nil {
			return summary, fmt.Errorf("product %d: %w", idx, err)
		}
		if err := i.storage.SaveProduct(ctx, &product); err != nil {
			return summary, err
		}
		summary.Products++

		if hasFacts {
			version := &models.ProductVersion{ProductID: product.ID}
			for _, f := range models.AsList(facts) {
				if s := models.AsString(f); s != "" {
					version.Facts = append(version.Facts, s)
				}
			}
			if err := i.storage.SaveProductVersion(ctx, version); err != nil {
				return summary, err
			}
			summary.ProductVersions++
		}
	}

	i.logger.Info().
		Int("patents", summary.Patents).
		Int("claims", summary.Claims).
		Int("companies", summary.Companies).
		Int("products", summary.Products).
		Int("product_versions", summary.ProductVersions).
		Msg("Master data imported")

	return summary, nil
}

// decodeRecord maps a YAML record onto a model through its JSON tags
func decodeRecord(raw any, out any) error {
	data, err := json.Marshal(normalize(raw))
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// normalize renders YAML dates as plain "2006-01-02" strings
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t
	default:
		return v
	}
}
