package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// defaultSheet is the sheet every new excelize file starts with.
const defaultSheet = "Sheet1"

// EncodeXLSX renders wb as an Office Open XML workbook. Rows are streamed so
// large tables do not build a full cell model in memory.
func EncodeXLSX(wb *Workbook) ([]byte, error) {
	if err := wb.checkNames(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range wb.Sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, s.Name); err != nil {
				return nil, fmt.Errorf("name sheet %q: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", s.Name, err)
		}

		if err := writeSheet(f, s); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", s.Name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, s *Sheet) error {
	sw, err := f.NewStreamWriter(s.Name)
	if err != nil {
		return err
	}

	row := 1
	if len(s.Header) > 0 {
		header := make([]any, len(s.Header))
		for i, h := range s.Header {
			header[i] = h
		}
		if err := setRow(sw, row, header); err != nil {
			return err
		}
		row++
	}
	for _, cells := range s.Rows {
		if err := setRow(sw, row, cells); err != nil {
			return err
		}
		row++
	}
	return sw.Flush()
}

func setRow(sw *excelize.StreamWriter, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := sw.SetRow(cell, cells); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	return nil
}

// ReadXLSX returns every sheet's cells as text, keyed by sheet name, along
// with the sheet order.
func ReadXLSX(data []byte) (map[string][][]string, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	out := make(map[string][][]string, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		out[name] = rows
	}
	return out, names, nil
}
