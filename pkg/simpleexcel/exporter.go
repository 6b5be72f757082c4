package simpleexcel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Constants & Types
// =============================================================================

const defaultSheet = "Sheet1"

// Formatter converts a cell value before it is written.
type Formatter func(v interface{}) interface{}

// DataExporter is the main entry point for exporting data.
type DataExporter struct {
	template *ReportTemplate
	// data holds data bound to specific section IDs (for YAML flow)
	data map[string]interface{}
	// sheets holds manually added sheets (for programmatic flow)
	sheets     []*SheetBuilder
	formatters map[string]Formatter
}

// ReportTemplate represents the YAML structure.
type ReportTemplate struct {
	Sheets []SheetTemplate `yaml:"sheets"`
}

// SheetTemplate represents a sheet in the YAML.
type SheetTemplate struct {
	Name     string          `yaml:"name"`
	Sections []SectionConfig `yaml:"sections"`
}

// SectionConfig defines a section of data in a sheet. Sections stack vertically
// with one blank row between them unless Position pins the top-left cell.
type SectionConfig struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Data        interface{}    `yaml:"-"` // Data is bound at runtime
	Locked      bool           `yaml:"locked"`
	ShowHeader  bool           `yaml:"show_header"`
	Position    string         `yaml:"position"` // e.g., "A1"
	TitleStyle  *StyleTemplate `yaml:"title_style"`
	HeaderStyle *StyleTemplate `yaml:"header_style"`
	Columns     []ColumnConfig `yaml:"columns"`
}

// ColumnConfig defines a column in a section.
type ColumnConfig struct {
	FieldName string  `yaml:"field_name"` // Struct field name or map key
	Header    string  `yaml:"header"`
	Width     float64 `yaml:"width"`
	Formatter string  `yaml:"formatter"` // name registered with RegisterFormatter
}

// StyleTemplate defines basic styling.
type StyleTemplate struct {
	Font *FontTemplate `yaml:"font"`
	Fill *FillTemplate `yaml:"fill"`
}

type FontTemplate struct {
	Bold  bool   `yaml:"bold"`
	Color string `yaml:"color"` // Hex color
}

type FillTemplate struct {
	Color string `yaml:"color"` // Hex color
}

// =============================================================================
// Constructors
// =============================================================================

func NewDataExporter() *DataExporter {
	return &DataExporter{
		data:       make(map[string]interface{}),
		formatters: make(map[string]Formatter),
	}
}

// NewDataExporterFromYamlConfig parses an inline YAML report template.
func NewDataExporterFromYamlConfig(config string) (*DataExporter, error) {
	return newFromYaml(strings.NewReader(config))
}

// NewDataExporterFromYamlFile parses the YAML report template at path.
func NewDataExporterFromYamlFile(path string) (*DataExporter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open yaml file: %w", err)
	}
	defer f.Close()
	return newFromYaml(f)
}

func newFromYaml(r io.Reader) (*DataExporter, error) {
	var tmpl ReportTemplate
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tmpl); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	for _, sheet := range tmpl.Sheets {
		if strings.TrimSpace(sheet.Name) == "" {
			return nil, fmt.Errorf("decode yaml: sheet without a name")
		}
	}

	e := NewDataExporter()
	e.template = &tmpl
	return e, nil
}

// =============================================================================
// Fluent API
// =============================================================================

// AddSheet starts a new sheet builder.
func (e *DataExporter) AddSheet(name string) *SheetBuilder {
	sb := &SheetBuilder{
		exporter: e,
		name:     name,
	}
	e.sheets = append(e.sheets, sb)
	return sb
}

// BindSectionData binds data to a section ID (for YAML-based export).
func (e *DataExporter) BindSectionData(id string, data interface{}) *DataExporter {
	e.data[id] = data
	return e
}

// RegisterFormatter makes fn available to columns naming it in their formatter field.
func (e *DataExporter) RegisterFormatter(name string, fn Formatter) *DataExporter {
	e.formatters[name] = fn
	return e
}

type SheetBuilder struct {
	exporter *DataExporter
	name     string
	sections []*SectionConfig
}

func (sb *SheetBuilder) AddSection(config *SectionConfig) *SheetBuilder {
	sb.sections = append(sb.sections, config)
	return sb
}

func (sb *SheetBuilder) Build() *DataExporter {
	return sb.exporter
}

// =============================================================================
// Output
// =============================================================================

type resolvedSheet struct {
	name     string
	sections []*SectionConfig
}

// resolve merges programmatic sheets and template sheets, binding data by section ID.
// Template sections are copied so the template can be reused.
func (e *DataExporter) resolve() []resolvedSheet {
	var out []resolvedSheet
	for _, sb := range e.sheets {
		out = append(out, resolvedSheet{name: sb.name, sections: sb.sections})
	}
	if e.template == nil {
		return out
	}
	for _, st := range e.template.Sheets {
		sections := make([]*SectionConfig, len(st.Sections))
		for i := range st.Sections {
			sec := st.Sections[i]
			if data, ok := e.data[sec.ID]; ok {
				sec.Data = data
			}
			sections[i] = &sec
		}
		out = append(out, resolvedSheet{name: st.Name, sections: sections})
	}
	return out
}

// BuildExcel renders every sheet into an in-memory workbook. The caller closes it.
func (e *DataExporter) BuildExcel() (*excelize.File, error) {
	f := excelize.NewFile()
	for i, sheet := range e.resolve() {
		if err := addSheet(f, i, sheet.name); err != nil {
			f.Close()
			return nil, err
		}
		if err := e.renderSections(f, sheet.name, sheet.sections); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// ToWriter renders the workbook with BuildExcel and writes it to w.
func (e *DataExporter) ToWriter(w io.Writer) error {
	f, err := e.BuildExcel()
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ToCSV writes the sections of the first sheet as CSV: title row, header row, data rows
// and an empty record between sections. Position and styles are ignored.
func (e *DataExporter) ToCSV(w io.Writer) error {
	sheets := e.resolve()
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to export")
	}

	cw := csv.NewWriter(w)
	for i, sec := range sheets[0].sections {
		if i > 0 {
			if err := cw.Write([]string{}); err != nil {
				return err
			}
		}
		if sec.Title != "" {
			if err := cw.Write([]string{sec.Title}); err != nil {
				return err
			}
		}
		if sec.ShowHeader {
			if err := cw.Write(headers(sec)); err != nil {
				return err
			}
		}
		err := e.eachRow(sec, func(row []interface{}) error {
			record := make([]string, len(row))
			for j, v := range row {
				record[j] = fmt.Sprint(v)
			}
			return cw.Write(record)
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// =============================================================================
// Rendering Logic
// =============================================================================

func addSheet(f *excelize.File, index int, name string) error {
	if index == 0 {
		f.SetSheetName(defaultSheet, name)
		if idx, err := f.GetSheetIndex(name); err != nil || idx == -1 {
			return fmt.Errorf("invalid sheet name %q", name)
		}
		return nil
	}
	if idx, _ := f.GetSheetIndex(name); idx != -1 {
		return fmt.Errorf("duplicate sheet %q", name)
	}
	_, err := f.NewSheet(name)
	return err
}

func (e *DataExporter) renderSections(f *excelize.File, sheet string, sections []*SectionConfig) error {
	nextRow := 1
	hasLocked := false

	for _, sec := range sections {
		startCol, row := placement(sec, nextRow)
		hasLocked = hasLocked || sec.Locked

		cellStyle, err := createStyle(f, nil, sec.Locked)
		if err != nil {
			return err
		}

		if sec.Title != "" {
			cell, _ := excelize.CoordinatesToCellName(startCol, row)
			if err := f.SetCellValue(sheet, cell, sec.Title); err != nil {
				return err
			}
			styleID, err := createStyle(f, sec.TitleStyle, sec.Locked)
			if err != nil {
				return err
			}
			end := cell
			if len(sec.Columns) > 1 {
				end, _ = excelize.CoordinatesToCellName(startCol+len(sec.Columns)-1, row)
				if err := f.MergeCell(sheet, cell, end); err != nil {
					return err
				}
			}
			if err := f.SetCellStyle(sheet, cell, end, styleID); err != nil {
				return err
			}
			row++
		}

		if sec.ShowHeader {
			styleID, err := createStyle(f, sec.HeaderStyle, sec.Locked)
			if err != nil {
				return err
			}
			for i, col := range sec.Columns {
				cell, _ := excelize.CoordinatesToCellName(startCol+i, row)
				if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
					return err
				}
				if err := f.SetCellStyle(sheet, cell, cell, styleID); err != nil {
					return err
				}
			}
			row++
		}

		if err := setWidths(f, sheet, startCol, sec.Columns); err != nil {
			return err
		}

		err = e.eachRow(sec, func(values []interface{}) error {
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(startCol+i, row)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
			if len(values) > 0 {
				first, _ := excelize.CoordinatesToCellName(startCol, row)
				last, _ := excelize.CoordinatesToCellName(startCol+len(values)-1, row)
				if err := f.SetCellStyle(sheet, first, last, cellStyle); err != nil {
					return err
				}
			}
			row++
			return nil
		})
		if err != nil {
			return err
		}

		// Blank row between sections
		if row+1 > nextRow {
			nextRow = row + 1
		}
	}

	// Locked cells are only read-only on a protected sheet.
	if hasLocked {
		return f.ProtectSheet(sheet, &excelize.SheetProtectionOptions{
			SelectLockedCells:   true,
			SelectUnlockedCells: true,
		})
	}
	return nil
}

func placement(sec *SectionConfig, nextRow int) (col, row int) {
	if sec.Position != "" {
		if c, r, err := excelize.CellNameToCoordinates(sec.Position); err == nil {
			return c, r
		}
	}
	return 1, nextRow
}

func setWidths(f *excelize.File, sheet string, startCol int, cols []ColumnConfig) error {
	for i, col := range cols {
		if col.Width <= 0 {
			continue
		}
		name, _ := excelize.ColumnNumberToName(startCol + i)
		if err := f.SetColWidth(sheet, name, name, col.Width); err != nil {
			return err
		}
	}
	return nil
}

func headers(sec *SectionConfig) []string {
	out := make([]string, len(sec.Columns))
	for i, col := range sec.Columns {
		out[i] = col.Header
	}
	return out
}

// eachRow calls fn with the formatted column values of every element of sec.Data.
// Data must be a slice (or pointer to one) of structs, struct pointers or string-keyed maps.
func (e *DataExporter) eachRow(sec *SectionConfig, fn func([]interface{}) error) error {
	if sec.Data == nil {
		return nil
	}
	v := reflect.ValueOf(sec.Data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Errorf("section %q: data must be a slice, got %s", sec.ID, v.Kind())
	}

	for i := 0; i < v.Len(); i++ {
		row := make([]interface{}, len(sec.Columns))
		for j, col := range sec.Columns {
			val := extractValue(v.Index(i), col.FieldName)
			if col.Formatter != "" {
				format, ok := e.formatters[col.Formatter]
				if !ok {
					return fmt.Errorf("section %q: unknown formatter %q", sec.ID, col.Formatter)
				}
				val = format(val)
			}
			row[j] = val
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// extractValue reads fieldName from a struct or map item. Nil pointers and missing fields
// yield "". Named numeric and string types are converted to their base type so that
// excelize writes them as numbers and plain text.
func extractValue(item reflect.Value, fieldName string) interface{} {
	item = indirect(item)
	if !item.IsValid() {
		return ""
	}

	var f reflect.Value
	switch item.Kind() {
	case reflect.Struct:
		f = item.FieldByName(fieldName)
	case reflect.Map:
		if item.Type().Key().Kind() == reflect.String {
			f = item.MapIndex(reflect.ValueOf(fieldName).Convert(item.Type().Key()))
		}
	}

	f = indirect(f)
	if !f.IsValid() || !f.CanInterface() {
		return ""
	}

	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return f.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return f.Uint()
	case reflect.Float32, reflect.Float64:
		return f.Float()
	case reflect.String:
		return f.String()
	case reflect.Bool:
		return f.Bool()
	}
	return f.Interface()
}

// indirect follows pointers and interfaces, returning the zero Value for nil.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func createStyle(f *excelize.File, tmpl *StyleTemplate, locked bool) (int, error) {
	style := &excelize.Style{
		Protection: &excelize.Protection{Locked: locked},
	}
	if tmpl != nil && tmpl.Font != nil {
		style.Font = &excelize.Font{
			Bold:  tmpl.Font.Bold,
			Color: strings.TrimPrefix(tmpl.Font.Color, "#"),
		}
	}
	if tmpl != nil && tmpl.Fill != nil {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Color:   []string{strings.TrimPrefix(tmpl.Fill.Color, "#")},
			Pattern: 1,
		}
	}
	return f.NewStyle(style)
}
