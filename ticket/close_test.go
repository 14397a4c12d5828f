package ticket

import (
	"context"
	"testing"

	"github.com/pyama86/ticketbot/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RequestAndConfirmClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.finalized(t)

	msg, err := h.m.RequestClose(ctx, id, creator, "fixed")
	require.NoError(t, err)
	assert.True(t, msg.Ephemeral)
	require.Len(t, msg.Buttons, 2)
	assert.Equal(t, CloseConfirmID, msg.Buttons[0].CustomID)
	assert.Equal(t, CloseCancelID, msg.Buttons[1].CustomID)
	assert.True(t, h.ticket(t, id).IsOpen())

	_, err = h.m.ConfirmClose(ctx, id, creator)
	require.NoError(t, err)

	tk := h.ticket(t, id)
	assert.Equal(t, model.TicketClosed, tk.Status)
	assert.Equal(t, "fixed", tk.CloseReason)
	assert.Equal(t, testCreator, tk.ClosedBy)
	assert.NotNil(t, tk.ClosedAt)
	assert.True(t, h.gw.isDeleted(id))
	assert.Empty(t, h.tasks(t, id))

	// the creator is the closer, one DM only
	assert.Len(t, h.gw.dms[testCreator], 1)

	logs := h.gw.messages("log-chan")
	require.Len(t, logs, 1)
	embed := logs[0].Embeds[0]
	assert.Equal(t, "Ticket #0001 closed", embed.Title)
	require.Len(t, logs[0].Files, 1)
	assert.Equal(t, "ticket-0001.html", logs[0].Files[0].Name)

	_, err = h.m.ConfirmClose(ctx, id, creator)
	assertUserError(t, err, KindValidation)
}

func TestManager_CancelClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.finalized(t)

	_, err := h.m.RequestClose(ctx, id, creator, "")
	require.NoError(t, err)
	_, err = h.m.CancelClose(ctx, id, creator)
	require.NoError(t, err)
	assert.True(t, h.ticket(t, id).IsOpen())
	assert.Nil(t, h.m.pendingClose.Get(pendingKey(id, testCreator)))
}

func TestManager_ClosePermission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.finalized(t)

	_, err := h.m.RequestClose(ctx, id, outsider, "")
	assertUserError(t, err, KindPermission)
	_, err = h.m.ConfirmClose(ctx, id, outsider)
	assertUserError(t, err, KindPermission)
	// staff without a closing role cannot close either
	assertUserError(t, h.m.Close(ctx, id, staff, "done"), KindPermission)
	assert.True(t, h.ticket(t, id).IsOpen())

	_, err = h.m.RequestClose(ctx, id, closer, "resolved")
	require.NoError(t, err)
	_, err = h.m.ConfirmClose(ctx, id, closer)
	require.NoError(t, err)
	tk := h.ticket(t, id)
	assert.Equal(t, model.TicketClosed, tk.Status)
	assert.Equal(t, "resolved", tk.CloseReason)
	assert.Len(t, h.gw.dms["closer1"], 1)
}

func TestManager_CloseUploadFallback(t *testing.T) {
	h := newHarness(t)
	up := &fakeUploader{err: errFake}
	h.m.pipeline.Uploader = up
	id := h.finalized(t)

	require.NoError(t, h.m.Close(context.Background(), id, closer, "done"))

	assert.Equal(t, 1, up.calls)
	assert.Equal(t, model.TicketClosed, h.ticket(t, id).Status)
	assert.True(t, h.gw.isDeleted(id))
	logs := h.gw.messages("log-chan")
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Files, 1)
	assert.Empty(t, logs[0].Embeds[0].URL)
	assert.Equal(t, "Attached", logs[0].Embeds[0].Fields[7].Value)
}

func TestManager_CloseUploadLink(t *testing.T) {
	h := newHarness(t)
	h.m.pipeline.Uploader = &fakeUploader{url: "https://transcripts.example.com"}
	id := h.finalized(t)

	require.NoError(t, h.m.Close(context.Background(), id, closer, "done"))

	logs := h.gw.messages("log-chan")
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].Files)
	assert.Equal(t, "https://transcripts.example.com/ticket-0001.html", logs[0].Embeds[0].URL)
}

func TestManager_CloseSurvivesFailures(t *testing.T) {
	h := newHarness(t)
	id := h.finalized(t)
	h.gw.failDM[testCreator] = true
	h.gw.failDelete = true
	h.gw.failHistory = true

	require.NoError(t, h.m.Close(context.Background(), id, closer, "done"))

	tk := h.ticket(t, id)
	assert.Equal(t, model.TicketClosed, tk.Status)
	assert.Equal(t, "closer1", tk.ClosedBy)
	assert.Empty(t, h.gw.dms[testCreator])
	assert.Len(t, h.gw.dms["closer1"], 1)

	logs := h.gw.messages("log-chan")
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].Files)
	assert.Equal(t, "Unavailable", logs[0].Embeds[0].Fields[7].Value)
}
