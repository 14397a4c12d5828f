package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringList_ValueScan(t *testing.T) {
	in := StringList{"Java", "Hub"}
	v, err := in.Value()
	assert.NoError(t, err)
	assert.Equal(t, `["Java","Hub"]`, v)

	var out StringList
	assert.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, in, out)

	var empty StringList
	v, err = StringList(nil).Value()
	assert.NoError(t, err)
	assert.NoError(t, empty.Scan(v))
	assert.Equal(t, StringList{}, empty)

	assert.NoError(t, empty.Scan(nil))
	assert.Equal(t, StringList{}, empty)
	assert.Error(t, empty.Scan(42))
}

func TestAnswerList_ValueScan(t *testing.T) {
	in := AnswerList{{Question: "What issue?", Answer: "lag"}}
	v, err := in.Value()
	assert.NoError(t, err)

	var out AnswerList
	assert.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)
	assert.Error(t, out.Scan("{not json"))
}

func TestTicket_NextQuestion(t *testing.T) {
	tk := &Ticket{Number: 7, Questions: StringList{"a?", "b?"}}
	assert.Equal(t, "ticket-0007", tk.ChannelName())

	q, ok := tk.NextQuestion()
	assert.True(t, ok)
	assert.Equal(t, "a?", q)

	tk.Answers = AnswerList{{Question: "a?", Answer: "1"}, {Question: "b?", Answer: "2"}}
	_, ok = tk.NextQuestion()
	assert.False(t, ok)
}
