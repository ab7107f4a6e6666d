package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
	"github.com/noah-isme/progress-dashboard/pkg/export"
)

type failingRenderer struct{}

func (failingRenderer) Render(export.Table) ([]byte, error) {
	return nil, errors.New("disk full")
}

func TestStudentTableCSV(t *testing.T) {
	svc := NewExportService(registryWith(fixtureEvents()), nil, nil)

	result, err := svc.StudentTableCSV(context.Background(), "1", "X")
	require.NoError(t, err)
	assert.Equal(t, "IntroData_X_items.csv", result.Filename)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t,
		"module_name,item_title,item_type,status\n"+
			"Module 9: A unit,A1 title,Assignment,completed\n"+
			"Module 9: A unit,A2 title,Assignment,incomplete\n"+
			"Module 9: B unit,B1 title,Assignment,no_requirement\n",
		string(result.Data))
}

func TestStudentTableCSVUnknownStudent(t *testing.T) {
	svc := NewExportService(registryWith(fixtureEvents()), nil, nil)

	result, err := svc.StudentTableCSV(context.Background(), "1", "nobody")
	require.NoError(t, err)
	assert.Zero(t, result.Rows)
	assert.Equal(t, "module_name,item_title,item_type,status\n", string(result.Data))
}

func TestStudentTableCSVValidation(t *testing.T) {
	svc := NewExportService(registryWith(fixtureEvents()), nil, nil)

	_, err := svc.StudentTableCSV(context.Background(), "1", "All")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentTableCSV(context.Background(), "", "X")
	assert.Error(t, err)

	_, err = NewExportService(registryWith(fixtureEvents()), failingRenderer{}, nil).StudentTableCSV(context.Background(), "1", "X")
	assert.Error(t, err)
}
