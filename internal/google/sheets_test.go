package google

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account","client_email":"reports@project.iam.gserviceaccount.com"}`), 0o600))

	svc := &SheetsService{}
	email, err := svc.GetServiceAccountEmail(path)
	require.NoError(t, err)
	assert.Equal(t, "reports@project.iam.gserviceaccount.com", email)
}

func TestGetServiceAccountEmail_MissingFile(t *testing.T) {
	svc := &SheetsService{}
	_, err := svc.GetServiceAccountEmail(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestGetServiceAccountEmail_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	svc := &SheetsService{}
	_, err := svc.GetServiceAccountEmail(path)
	assert.Error(t, err)
}
