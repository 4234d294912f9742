package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/document"
)

const (
	exportTypeExpenses = "expenses"
	exportTypeTodos    = "todos"
)

const timeLayout = time.RFC3339

// maxImportBytes ограничивает размер файла резервной копии.
const maxImportBytes = 20 << 20

// Export выгружает документ в файл life_tracker_backup_<дата>.json.
func (h *DocumentHandler) Export(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	doc, err := h.load(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	payload, err := document.Export(doc)
	if err != nil {
		return serverError(c)
	}

	filename := document.BackupFilename(h.now())
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, payload)
}

// Import заменяет документ содержимым резервной копии: multipart-поле file или JSON в теле.
// Невалидный файл отклоняется без записи.
func (h *DocumentHandler) Import(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	raw, err := readUpload(c, "file", maxImportBytes)
	if err != nil {
		return badRequest(c, "invalid payload")
	}

	doc, err := document.Import(raw)
	if err != nil {
		return badRequest(c, document.ErrInvalidStructure.Error())
	}

	_, updatedAt, err := h.store(c.Request().Context(), userID, doc, clientSession(c))
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, SaveResponse{UpdatedAt: updatedAt})
}

// ExportCSV выгружает расходы или задачи в CSV (?type=expenses|todos).
func (h *DocumentHandler) ExportCSV(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	exportType := strings.ToLower(strings.TrimSpace(c.QueryParam("type")))
	if exportType == "" {
		exportType = exportTypeExpenses
	}
	if exportType != exportTypeExpenses && exportType != exportTypeTodos {
		return badRequest(c, "invalid export type")
	}

	doc, err := h.load(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	switch exportType {
	case exportTypeTodos:
		err = writeTodosCSV(writer, doc.Todos)
	default:
		err = writeExpensesCSV(writer, doc.Expenses)
	}
	if err != nil {
		return serverError(c)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return serverError(c)
	}

	filename := "life_tracker_" + exportType + "_" + h.now().Format(document.DateLayout) + ".csv"
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buffer.Bytes())
}

func writeExpensesCSV(writer *csv.Writer, expenses []document.Expense) error {
	if err := writer.Write([]string{"id", "date", "category", "description", "amount"}); err != nil {
		return err
	}
	for _, expense := range expenses {
		record := []string{
			expense.ID,
			expense.Date,
			string(expense.Category),
			expense.Description,
			strconv.FormatFloat(expense.Amount, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeTodosCSV(writer *csv.Writer, todos []document.Todo) error {
	if err := writer.Write([]string{"id", "date", "priority", "title", "completed"}); err != nil {
		return err
	}
	for _, todo := range todos {
		record := []string{
			todo.ID,
			todo.Date,
			string(todo.Priority),
			todo.Title,
			strconv.FormatBool(todo.Completed),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// readUpload читает multipart-поле field, а если запрос не multipart, то тело целиком.
func readUpload(c echo.Context, field string, limit int64) ([]byte, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return readBody(c)
	}

	header, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	if header.Size > limit {
		return nil, errors.New("file too large")
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(io.LimitReader(file, limit))
}

func readBody(c echo.Context) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxImportBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty body")
	}
	return raw, nil
}
