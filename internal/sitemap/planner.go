package sitemap

import (
	"fmt"

	"github.com/romangod6/big-sitemap/internal/models"
)

// Plan is the batch layout of one source.
type Plan struct {
	Total  int
	Files  int
	Ranges []models.BatchRange
}

// PlanBatches splits [0, total) into fetch batches of at most batchSize
// records, grouped into ceil(total/maxPerFile) files. Records are spread
// evenly across files; the first total%files files take one record more.
func PlanBatches(total, maxPerFile, batchSize int) (*Plan, error) {
	switch {
	case total < 0:
		return nil, fmt.Errorf("%w: negative record count %d", ErrInvalidPlan, total)
	case maxPerFile <= 0:
		return nil, fmt.Errorf("%w: max per file must be positive, got %d", ErrInvalidPlan, maxPerFile)
	case batchSize <= 0:
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidPlan, batchSize)
	case batchSize > maxPerFile:
		return nil, fmt.Errorf("%w: batch size %d exceeds max per file %d", ErrInvalidPlan, batchSize, maxPerFile)
	}

	plan := &Plan{Total: total}
	if total == 0 {
		return plan, nil
	}

	files := (total + maxPerFile - 1) / maxPerFile
	base, extra := total/files, total%files

	offset := 0
	for file := 0; file < files; file++ {
		size := base
		if file < extra {
			size++
		}
		end := offset + size
		for start := offset; start < end; start += batchSize {
			plan.Ranges = append(plan.Ranges, models.BatchRange{
				Offset: start,
				Limit:  min(batchSize, end-start),
				File:   file,
			})
		}
		offset = end
	}
	plan.Files = files

	return plan, nil
}

// FileSizes returns the number of records planned for each file.
func (p *Plan) FileSizes() []int {
	sizes := make([]int, p.Files)
	for _, r := range p.Ranges {
		sizes[r.File] += r.Limit
	}
	return sizes
}
