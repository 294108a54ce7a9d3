package karting

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAge(t *testing.T) {
	dob := NewDate(2000, time.June, 15)
	tests := []struct {
		today string
		want  int
	}{
		{"2026-06-14", 25},
		{"2026-06-15", 26},
		{"2026-01-10", 25},
		{"2026-12-31", 26},
		{"2000-06-15", 0},
	}
	for _, tt := range tests {
		today, err := ParseDate(tt.today)
		require.NoError(t, err)
		assert.Equal(t, tt.want, Age(dob, today), tt.today)
	}
}

func TestAgeLeapDayBirthday(t *testing.T) {
	dob := NewDate(2004, time.February, 29)
	assert.Equal(t, 21, Age(dob, NewDate(2026, time.February, 28)))
	assert.Equal(t, 22, Age(dob, NewDate(2026, time.March, 1)))
}

func TestIsEligibleBounds(t *testing.T) {
	c := RaceCategory{MinAge: 18, MaxAge: 35}
	assert.False(t, IsEligible(c, 17))
	assert.True(t, IsEligible(c, 18))
	assert.True(t, IsEligible(c, 20))
	assert.True(t, IsEligible(c, 35))
	assert.False(t, IsEligible(c, 36))
	assert.False(t, IsEligible(c, 40))

	inverted := RaceCategory{MinAge: 30, MaxAge: 20}
	assert.False(t, IsEligible(inverted, 25))
}

func TestRaceIsUserEligible(t *testing.T) {
	today := NewDate(2026, time.January, 10)
	r := Race{Category: RaceCategory{MinAge: 18, MaxAge: 35}}

	assert.True(t, r.IsUserEligible(&User{DateOfBirth: NewDate(2005, time.June, 1)}, today))
	assert.False(t, r.IsUserEligible(&User{DateOfBirth: NewDate(1985, time.June, 1)}, today))
	assert.False(t, r.IsUserEligible(&User{}, today))
	assert.False(t, r.IsUserEligible(nil, today))
}

func TestRaceIsFull(t *testing.T) {
	assert.False(t, (&Race{MaxParticipants: 10, ParticipantsCount: 9}).IsFull())
	assert.True(t, (&Race{MaxParticipants: 10, ParticipantsCount: 10}).IsFull())
}

func TestCleanupMessage(t *testing.T) {
	assert.Equal(t, "No registrations have been deleted.", CleanupMessage(0))
	assert.Equal(t, "1 registrations have been deleted.", CleanupMessage(1))
	assert.Equal(t, "12 registrations have been deleted.", CleanupMessage(12))
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}{D: NewDate(2026, time.March, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2026-03-01","z":null}`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-01"`), &d))
	assert.Equal(t, NewDate(2026, time.March, 1), d)
	assert.Error(t, json.Unmarshal([]byte(`"03/01/2026"`), &d))
}

func TestDateOfKeepsCalendarDay(t *testing.T) {
	late := time.Date(2026, time.January, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, NewDate(2026, time.January, 10), DateOf(late))
	assert.Equal(t, NewDate(2026, time.January, 11), DateOf(late).AddDays(1))
}

func TestFieldErrors(t *testing.T) {
	errs := FieldErrors{}
	assert.NoError(t, errs.err())

	errs.add("name", msgRequired)
	errs.add("name", "second message is dropped")
	errs.add("date", "Enter a valid date.")
	assert.Equal(t, msgRequired, errs["name"])
	assert.Equal(t, "invalid input: date: Enter a valid date.; name: This field is required.", errs.Error())
}

func TestNewPage(t *testing.T) {
	p := newPage([]int{1, 2}, 1, 2, 5)
	assert.Equal(t, 3, p.NumPages)
	assert.True(t, p.HasNext)
	assert.False(t, p.HasPrevious)

	empty := newPage[int](nil, 1, 2, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 1, empty.NumPages)
	assert.False(t, empty.HasNext)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, MsgRaceFull, UserMessage(ErrRaceFull))
	assert.Equal(t, MsgAlreadyRegistered, UserMessage(ErrAlreadyRegistered))
	assert.Equal(t, MsgInvalidKart, UserMessage(ErrInvalidSelection))
	assert.Empty(t, UserMessage(ErrNotFound))
}
