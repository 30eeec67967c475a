package calendar

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	ruleID := "rule-1"
	cancelledAt := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, time.January, 6, 11, 0, 0, 0, time.UTC)
	reservations := []application.Reservation{
		{ID: "res-1", RoomID: "room-r", RuleID: &ruleID, Purpose: "Aula", Start: start, End: start.Add(2 * time.Hour)},
		{ID: "res-2", RoomID: "room-r", RuleID: &ruleID, Purpose: "Aula", Start: start.AddDate(0, 0, 2), End: start.AddDate(0, 0, 2).Add(2 * time.Hour)},
		{ID: "res-3", RoomID: "room-x", Purpose: "Banca", Start: start, End: start.Add(time.Hour), DeletedAt: &cancelledAt},
	}

	var buf bytes.Buffer
	err := Write(&buf, reservations, Options{
		Name:  "WEEKLY-B101-08H",
		Stamp: cancelledAt,
		Rooms: map[string]application.Room{"room-r": {ID: "room-r", Code: "B101"}},
	})
	require.NoError(t, err)

	cal, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)

	name, err := cal.Props.Text(ical.PropName)
	require.NoError(t, err)
	assert.Equal(t, "WEEKLY-B101-08H", name)

	events := cal.Events()
	require.Len(t, events, 2, "cancelled reservations are not exported")

	uid, err := events[0].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "res-1@reservas", uid)

	location, err := events[0].Props.Text(ical.PropLocation)
	require.NoError(t, err)
	assert.Equal(t, "B101", location)

	dtstart, err := events[1].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, dtstart.Equal(start.AddDate(0, 0, 2)))

	related, err := events[1].Props.Text(ical.PropRelatedTo)
	require.NoError(t, err)
	assert.Equal(t, "rule-1@reservas", related)
}

func TestWriteEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Write(&buf, nil, Options{})
	assert.True(t, errors.Is(err, ErrEmpty))
	assert.Zero(t, buf.Len())
}
