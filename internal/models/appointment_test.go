package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointment_LegacyRecord(t *testing.T) {
	raw := `[{"datetime":"2025-03-10T11:00:00.000Z","name":"Ana","phone":"111","services":["Corte","Barba"]}]`

	var list []Appointment
	require.NoError(t, json.Unmarshal([]byte(raw), &list))
	require.Len(t, list, 1)

	apt := list[0]
	assert.Empty(t, apt.ID)
	assert.Nil(t, apt.CreatedAt)
	assert.True(t, apt.Datetime.Equal(time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"Corte", "Barba"}, apt.Services)
}

func TestAppointment_OmitsOptionalFields(t *testing.T) {
	apt := Appointment{
		Datetime: time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC),
		Name:     "Ana",
		Phone:    "111",
		Services: []string{"Corte"},
	}

	data, err := json.Marshal(apt)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "createdAt")
	assert.NotContains(t, string(data), `"id"`)
	assert.Contains(t, string(data), `"datetime":"2025-03-10T08:30:00Z"`)
}
