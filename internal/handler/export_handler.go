package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/locvowork/employee_roster/internal/domain"
	"github.com/locvowork/employee_roster/internal/logger"
	"github.com/locvowork/employee_roster/pkg/simpleexcel"
)

const (
	sectionFilters   = "filters"
	sectionEmployees = "employees"
)

// filterRow is one line of the filters section of an export.
type filterRow struct {
	Label string
	Value string
}

// currentPage copies the rows and filter of the loaded page from the loop.
func (h *RosterHandler) currentPage(c echo.Context) ([]domain.Employee, domain.FilterState, error) {
	var (
		rows   []domain.Employee
		filter domain.FilterState
	)
	err := h.run(c, func() {
		rows = h.session.Rows()
		filter = h.session.Filter()
	})
	return rows, filter, err
}

func filterRows(filter domain.FilterState) []filterRow {
	orAll := func(s string) string {
		if s == "" {
			return "All"
		}
		return s
	}
	return []filterRow{
		{Label: "Department", Value: orAll(filter.Department)},
		{Label: "Role", Value: orAll(filter.Role)},
		{Label: "Page", Value: fmt.Sprint(filter.Page)},
	}
}

func emptyDash(v interface{}) interface{} {
	if s, ok := v.(string); ok && s == "" {
		return "-"
	}
	return v
}

func (h *RosterHandler) newLayoutExporter() (*simpleexcel.DataExporter, error) {
	if h.cfg.ExportLayoutPath != "" {
		return simpleexcel.NewDataExporterFromYamlFile(h.cfg.ExportLayoutPath)
	}
	return simpleexcel.NewDataExporterFromYamlConfig(defaultExportLayout)
}

// ExportExcelHandler writes the loaded page as a workbook laid out by the export template.
// The employees section is locked, so its sheet is protected.
func (h *RosterHandler) ExportExcelHandler(c echo.Context) error {
	ctx := c.Request().Context()
	rows, filter, err := h.currentPage(c)
	if err != nil {
		return err
	}

	exporter, err := h.newLayoutExporter()
	if err != nil {
		logger.ErrorLog(ctx, "Failed to load export layout: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load export layout").SetInternal(err)
	}
	exporter.RegisterFormatter("empty_dash", emptyDash)
	exporter.
		BindSectionData(sectionFilters, filterRows(filter)).
		BindSectionData(sectionEmployees, rows)

	logger.InfoLog(ctx, "Exporting %d employees of page %d (xlsx)", len(rows), filter.Page)

	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="employees_page_%d.xlsx"`, filter.Page))
	if err := exporter.ToWriter(c.Response()); err != nil {
		logger.ErrorLog(ctx, "Failed to generate excel file: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate excel file").SetInternal(err)
	}
	return nil
}

// ExportCSVHandler writes the loaded page as CSV.
func (h *RosterHandler) ExportCSVHandler(c echo.Context) error {
	ctx := c.Request().Context()
	rows, filter, err := h.currentPage(c)
	if err != nil {
		return err
	}

	exporter := simpleexcel.NewDataExporter()
	exporter.AddSheet("Employees").
		AddSection(&simpleexcel.SectionConfig{
			ID:         sectionEmployees,
			ShowHeader: true,
			Data:       rows,
			Columns: []simpleexcel.ColumnConfig{
				{FieldName: "ID", Header: "id"},
				{FieldName: "Name", Header: "name"},
				{FieldName: "Email", Header: "email"},
				{FieldName: "Department", Header: "department"},
				{FieldName: "Role", Header: "role"},
				{FieldName: "DateJoined", Header: "date_joined"},
			},
		})

	logger.InfoLog(ctx, "Exporting %d employees of page %d (csv)", len(rows), filter.Page)

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="employees_page_%d.csv"`, filter.Page))
	if err := exporter.ToCSV(c.Response()); err != nil {
		logger.ErrorLog(ctx, "Failed to generate csv file: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate csv file").SetInternal(err)
	}
	return nil
}
