package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BradenHooton/riskgate/internal/models"
)

// readCSV reads feature rows from a CSV export. The header names the
// columns; every feature in names must be present, extra columns are
// ignored. Boolean features accept true/false as well as 1/0.
func readCSV(r io.Reader, names []string) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make([]int, len(names))
	for i, name := range names {
		c, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		idx[i] = c
	}

	var rows [][]float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]float64, len(names))
		for i, c := range idx {
			if row[i], err = parseCell(rec[c]); err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, names[i], err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func vectorsToRows(vecs []models.FeatureVector) [][]float64 {
	rows := make([][]float64, len(vecs))
	for i, v := range vecs {
		rows[i] = v.Values()
	}
	return rows
}
