package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/ansel1/merry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/serownia/internal/auth"
	"github.com/roach88/serownia/internal/dosage"
	"github.com/roach88/serownia/internal/protocol"
	"github.com/roach88/serownia/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeValidation, "Podaj datę produkcji.", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "Podaj datę produkcji.", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeDB, "database is locked", "details"))
	assert.Equal(t, "Error [E_DB]: database is locked\n", buf.String())

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(ErrCodeDB, "database is locked", "details"))
	assert.Contains(t, buf.String(), "Details: details\n")
}

func TestOutputFormatter_Result(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Result(map[string]int{"n": 1}, func(w io.Writer) error {
		_, err := io.WriteString(w, "jeden\n")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "jeden\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	err = formatter.Result(map[string]int{"n": 1}, func(w io.Writer) error {
		t.Fatal("text writer must not run in json mode")
		return nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"n":1}}`, buf.String())
}

func TestFail_UsesUserMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := merry.Prepend(protocol.ErrValidation, "date").WithUserMessage("Podaj datę produkcji.")
	err := formatter.Fail(cause)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "Podaj datę produkcji.", resp.Error.Message)
	assert.Equal(t, cause.Error(), resp.Error.Details)
}

func TestFail_PassesExitErrorsThrough(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	reported := WrapExitError(ExitCommandError, "boom", errors.New("boom"))
	err := formatter.Fail(reported)
	assert.Same(t, reported, err)
	assert.Empty(t, buf.String())
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"validation", merry.Wrap(protocol.ErrValidation), ErrCodeValidation, ExitFailure},
		{"number", merry.Prepend(dosage.ErrInvalidNumber, "price"), ErrCodeValidation, ExitFailure},
		{"no protocol", merry.Prepend(protocol.ErrNoProtocol, "product 3"), ErrCodeNoProtocol, ExitFailure},
		{"credentials", auth.ErrInvalidCredentials, ErrCodeAuth, ExitFailure},
		{"weak password", auth.ErrWeakPassword, ErrCodeAuth, ExitFailure},
		{"not found", merry.Prepend(store.ErrNotFound, "product 9"), ErrCodeNotFound, ExitFailure},
		{"duplicate", merry.Prepend(store.ErrDuplicate, "additive"), ErrCodeDuplicate, ExitFailure},
		{"constraint", merry.Prepend(store.ErrConstraint, "additive"), ErrCodeConstraint, ExitFailure},
		{"input", inputErrorf("Miesiąc musi być liczbą od 1 do 12."), ErrCodeValidation, ExitFailure},
		{"other", errors.New("disk I/O error"), ErrCodeDB, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classifyError(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.exit, exit)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "db")))
}

func TestWriteTable(t *testing.T) {
	buf := &bytes.Buffer{}
	err := writeTable(buf, []string{"ID", "NAZWA"}, [][]string{{"1", "Sól"}, {"12", "CHY-MAX"}})
	require.NoError(t, err)
	assert.Equal(t, "ID  NAZWA\n1   Sól\n12  CHY-MAX\n", buf.String())
}
