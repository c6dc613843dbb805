package device

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelsAreTotal(t *testing.T) {
	for m := Mode(0); m < modeCount; m++ {
		assert.NotEmpty(t, m.String(), "mode %d", int(m))
	}
	for s := State(0); s < stateCount; s++ {
		assert.NotEmpty(t, s.String(), "state %d", int(s))
	}
	for s := Status(0); s < statusCount; s++ {
		assert.NotEmpty(t, s.String(), "status %d", int(s))
	}
}

func TestUnknownCodesRenderNumerically(t *testing.T) {
	assert.Equal(t, "Mode(7)", Mode(7).String())
	assert.Equal(t, "State(-1)", State(-1).String())
	assert.Equal(t, "Status(4)", Status(4).String())
	assert.False(t, Mode(3).Valid())
	assert.True(t, StateBurning.Valid())
}

func TestStatusRecordDecode(t *testing.T) {
	payload := `[{"SwVer":"4.1","Mode":1,"State":9,"Status":0,"Flame":120,"Fan":55,"Tset":65,"Tboiler":63,"DHW":48,"TBMP":7.5,"CHPump":true,"DHWPump":0,"Power":3}]`

	var records []StatusRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &records))
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, ModeAuto, rec.Mode)
	assert.Equal(t, "Burning", rec.State.String())
	assert.Equal(t, "CH Priority", rec.Status.String())
	assert.True(t, bool(rec.CHPump))
	assert.False(t, bool(rec.DHWPump))
	assert.Equal(t, 3, rec.Power)
}

func TestFlagDecode(t *testing.T) {
	cases := map[string]bool{
		`true`:    true,
		`false`:   false,
		`1`:       true,
		`0`:       false,
		`"1"`:     true,
		`"false"`: false,
		`null`:    false,
	}
	for in, want := range cases {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		assert.Equal(t, want, bool(f), in)
	}

	var f Flag
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &f))
}

func TestMonthlyRecordOptionalFields(t *testing.T) {
	var records []MonthlyRecord
	require.NoError(t, json.Unmarshal([]byte(`[{"yr_mon":"2024-03","FFWork":"3600"},{"FFWork":10}]`), &records))
	require.Len(t, records, 2)

	require.NotNil(t, records[0].YearMonth)
	require.NotNil(t, records[0].FFWork)
	assert.Equal(t, "3600", records[0].FFWork.String())
	assert.Nil(t, records[1].YearMonth)
}
