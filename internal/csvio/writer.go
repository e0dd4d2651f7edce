package csvio

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/atmx/portfolio-engine/internal/model"
)

// WriteLedger writes a header plus one record per row in model.Columns order.
func WriteLedger(w io.Writer, rows []model.OutputRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.ColumnNames()); err != nil {
		return fmt.Errorf("csvio: write header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(rows[i].Record()); err != nil {
			return fmt.Errorf("csvio: write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
