package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDateRules(t *testing.T) {
	e := newExtractor(t)

	tests := []struct {
		text string
		rule string
		want string
	}{
		{"2024年4月1日より商号変更", "jp_full_effective", "2024年04月01日"},
		{"変更日:2023年7月3日", "jp_labeled", "2023年07月03日"},
		{"掲載 2022年12月25日", "jp_full", "2022年12月25日"},
		{"effective 2024/4/1", "iso_full", "2024年04月01日"},
		{"as of April 1, 2024", "en_full", "2024年04月01日"},
		{"Sept. 30 2021", "en_full", "2021年09月30日"},
		{"平成31年4月30日", "era_full", "2019年04月30日"},
		{"令和元年5月1日", "era_full", "2019年05月01日"},
		{"2022年4月、", "jp_year_month", "2022年04月"},
		{"令和元年10月", "era_year_month", "2019年10月"},
		{"from March 2025", "en_year_month", "2025年03月"},
		{"2020年に", "jp_year", "2020年"},
		{"昭和64年", "era_year", "1989年"},
		{"2024年13月1日", "jp_year", "2024年"},
		{"2024年4月0日", "jp_year_month", "2024年04月"},
		{"2023年2月30日", "jp_year_month", "2023年02月"},
		{"2024年2月29日", "jp_full", "2024年02月29日"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var trace []Attempt
			d, ok := Evaluate("date", e.dates, prepare(tt.text), &trace)
			assert.True(t, ok)
			assert.Equal(t, tt.want, d.String())
			if assert.NotEmpty(t, trace) {
				assert.Equal(t, tt.rule, trace[len(trace)-1].Rule)
			}
		})
	}
}

func TestDateRules_InvalidDateFallsThrough(t *testing.T) {
	e := newExtractor(t)

	var trace []Attempt
	d, ok := Evaluate("date", e.dates, prepare("2024年13月1日に商号変更。変更日:2024年4月1日"), &trace)
	assert.True(t, ok)
	assert.Equal(t, "2024年04月01日", d.String())
	if assert.NotEmpty(t, trace) {
		assert.Equal(t, "jp_full_effective", trace[0].Rule)
		assert.Equal(t, "2024年13月1日", trace[0].Value)
		assert.Equal(t, InvalidDate, trace[0].Rejection)
		assert.Equal(t, "jp_labeled", trace[len(trace)-1].Rule)
	}
}

func TestDateRules_RawIsDateSpan(t *testing.T) {
	e := newExtractor(t)

	var trace []Attempt
	d, ok := Evaluate("date", e.dates, prepare("2024年13月40日に商号変更"), &trace)
	assert.True(t, ok)
	assert.Equal(t, "2024年", d.String())
	for _, a := range trace {
		assert.NotContains(t, a.Value, "商号", "rule %s", a.Rule)
	}
}

func TestDateRules_NoDate(t *testing.T) {
	e := newExtractor(t)
	_, ok := Evaluate("date", e.dates, prepare("4月1日付で変更"), nil)
	assert.False(t, ok)
}

func TestDate_String(t *testing.T) {
	tests := []struct {
		d    Date
		want string
	}{
		{Date{Year: 2024, Month: 4, Day: 1}, "2024年04月01日"},
		{Date{Year: 2024, Month: 4}, "2024年04月"},
		{Date{Year: 2024}, "2024年"},
		{Date{Year: 2024, Day: 3, Raw: "raw"}, "raw"},
		{Date{Raw: "raw"}, "raw"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.d.String())
	}
}

func TestParseDate_UnknownEra(t *testing.T) {
	d := parseDate(Match{Text: "明治5年", Groups: map[string]string{"era": "明治", "eyear": "5"}}, map[string]int{"令和": 2018})
	assert.Equal(t, "明治5年", d.String())
}
