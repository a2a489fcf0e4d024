package tilecache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/osiedlownik/geoscore/pkg/model"
)

// fingerprint hashes the enabled factor set and scoring parameters that
// produced a tile so two builds agree on a cache key byte-for-byte
// regardless of the order factors were supplied in.
func fingerprint(factors []model.Factor, params model.ScoringParams, gridSize float64, zoom int) string {
	enabled := make([]model.Factor, 0, len(factors))
	for _, f := range factors {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].ID < enabled[j].ID })

	var b strings.Builder
	fmt.Fprintf(&b, "zoom=%d;grid=%s;curve=%s;sens=%s;lambda=%s;norm=%t",
		zoom,
		strconv.FormatFloat(gridSize, 'f', -1, 64),
		params.DistanceCurve,
		strconv.FormatFloat(params.Sensitivity, 'f', -1, 64),
		strconv.FormatFloat(params.Lambda, 'f', -1, 64),
		params.NormalizeToViewport,
	)
	for _, f := range enabled {
		fmt.Fprintf(&b, ";f=%s,w=%s,d=%s",
			f.ID,
			strconv.FormatFloat(f.Weight, 'f', -1, 64),
			strconv.FormatFloat(f.MaxDistance, 'f', -1, 64),
		)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
