package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"wagate/internal/domain"
	"wagate/internal/phone"
)

func TestCloseUpdate_Classification(t *testing.T) {
	cases := []struct {
		name string
		evt  interface{}
		want domain.CloseCause
	}{
		{"logged out", &events.LoggedOut{Reason: events.ConnectFailureLoggedOut}, domain.CauseLoggedOut},
		{"connect failure logged out", &events.ConnectFailure{Reason: events.ConnectFailureLoggedOut}, domain.CauseLoggedOut},
		{"connect failure other", &events.ConnectFailure{Reason: events.ConnectFailureReason(503)}, domain.CauseConnectFailed},
		{"disconnected", &events.Disconnected{}, domain.CauseConnectionLost},
		{"replaced", &events.StreamReplaced{}, domain.CauseStreamReplaced},
		{"stream error", &events.StreamError{Code: "500"}, domain.CauseStreamError},
		{"outdated", &events.ClientOutdated{}, domain.CauseClientOutdated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, ok := closeUpdate(tc.evt)
			require.True(t, ok)
			assert.Equal(t, domain.ConnectionClosed, u.State)
			assert.Equal(t, tc.want, u.Cause)
			assert.Equal(t, tc.want == domain.CauseLoggedOut, u.Cause.Terminal())
		})
	}

	_, ok := closeUpdate(&events.Connected{})
	assert.False(t, ok)
}

func TestQRUpdate(t *testing.T) {
	u, ok := qrUpdate(whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventCode, Code: "2@abc"})
	require.True(t, ok)
	assert.Equal(t, domain.ConnectionUpdate{State: domain.ConnectionQR, QR: "2@abc"}, u)

	_, ok = qrUpdate(whatsmeow.QRChannelSuccess)
	assert.False(t, ok)

	u, ok = qrUpdate(whatsmeow.QRChannelTimeout)
	require.True(t, ok)
	assert.Equal(t, domain.CauseQRTimeout, u.Cause)
	assert.False(t, u.Cause.Terminal())

	boom := errors.New("socket")
	u, ok = qrUpdate(whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventError, Error: boom})
	require.True(t, ok)
	assert.Equal(t, domain.CauseConnectFailed, u.Cause)
	assert.ErrorIs(t, u.Err, boom)
}

func TestRawFromEvent(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Sender: types.NewJID("5511987654321", types.DefaultUserServer),
			},
			ID:        "3EB0",
			Timestamp: ts,
		},
		Message: &waE2E.Message{Conversation: proto.String("oi")},
	}

	raw := rawFromEvent(evt)
	assert.Equal(t, domain.RawMessage{
		ID:        "3EB0",
		RemoteID:  "5511987654321@s.whatsapp.net",
		Text:      "oi",
		Timestamp: ts,
	}, raw)
}

func TestRawFromEvent_LIDSenderUsesPhoneNumber(t *testing.T) {
	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Sender:         types.NewJID("123456789012345", types.HiddenUserServer),
				SenderAlt:      types.NewJID("5511987654321", types.DefaultUserServer),
				AddressingMode: types.AddressingModeLID,
			},
			ID: "3EB1",
		},
		Message: &waE2E.Message{Conversation: proto.String("oi")},
	}

	raw := rawFromEvent(evt)
	assert.Equal(t, "5511987654321@s.whatsapp.net", raw.RemoteID)
	assert.Equal(t, phone.DefaultPlan.Canonicalize("5511987654321"), phone.DefaultPlan.Canonicalize(raw.RemoteID))
}

func TestRawFromEvent_LIDSenderWithoutAltIsKept(t *testing.T) {
	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Sender: types.NewJID("123456789012345", types.HiddenUserServer)},
		},
	}
	assert.Equal(t, "123456789012345@lid", rawFromEvent(evt).RemoteID)
}

func TestResolveLIDs(t *testing.T) {
	known := map[string]types.JID{
		"123456789012345@lid": types.NewJID("5511987654321", types.DefaultUserServer),
	}
	lookup := func(_ context.Context, lid types.JID) (types.JID, error) {
		if pn, ok := known[lid.String()]; ok {
			return pn, nil
		}
		if lid.User == "999" {
			return types.JID{}, errors.New("db down")
		}
		return types.JID{}, nil
	}
	msgs := []domain.RawMessage{
		{RemoteID: "123456789012345@lid"},
		{RemoteID: "5511900000000@s.whatsapp.net"},
		{RemoteID: "777@lid"},
		{RemoteID: "999@lid"},
	}

	unresolved := resolveLIDs(context.Background(), msgs, lookup)
	assert.Equal(t, 2, unresolved)
	assert.Equal(t, "5511987654321@s.whatsapp.net", msgs[0].RemoteID)
	assert.Equal(t, "5511900000000@s.whatsapp.net", msgs[1].RemoteID)
	assert.Equal(t, "777@lid", msgs[2].RemoteID)
	assert.Equal(t, "999@lid", msgs[3].RemoteID)
}

func TestRawFromEvent_NonTextBodyIsEmpty(t *testing.T) {
	evt := &events.Message{
		Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("cap")}},
	}
	assert.Equal(t, "", rawFromEvent(evt).Text)
}

func TestHistoryBatch(t *testing.T) {
	evt := &events.HistorySync{Data: &waHistorySync.HistorySync{
		Conversations: []*waHistorySync.Conversation{{
			ID: proto.String("5511987654321@s.whatsapp.net"),
			Messages: []*waHistorySync.HistorySyncMsg{
				{Message: &waWeb.WebMessageInfo{
					Key: &waCommon.MessageKey{
						RemoteJID: proto.String("5511987654321@s.whatsapp.net"),
						FromMe:    proto.Bool(true),
						ID:        proto.String("H1"),
					},
					Message:          &waE2E.Message{Conversation: proto.String("old")},
					MessageTimestamp: proto.Uint64(1600000000),
				}},
				{},
			},
		}},
	}}

	batch := historyBatch(evt)
	assert.False(t, batch.Live)
	require.Len(t, batch.Messages, 1)
	assert.Equal(t, domain.MessageID("H1"), batch.Messages[0].ID)
	assert.True(t, batch.Messages[0].FromMe)
	assert.Equal(t, "old", batch.Messages[0].Text)
	assert.Equal(t, int64(1600000000), batch.Messages[0].Timestamp.Unix())
}

func TestBuildMessage_Text(t *testing.T) {
	msg, err := buildMessage(domain.Payload{Kind: domain.PayloadText, Text: "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.GetConversation())
}

func TestBuildMessage_Image(t *testing.T) {
	up := &uploaded{resp: whatsmeow.UploadResponse{
		URL:        "https://mmg.example/x",
		DirectPath: "/v/x",
		MediaKey:   []byte{1},
		FileLength: 42,
	}, mimetype: "image/png"}

	msg, err := buildMessage(domain.Payload{Kind: domain.PayloadImage, Caption: "look"}, up)
	require.NoError(t, err)
	img := msg.GetImageMessage()
	require.NotNil(t, img)
	assert.Equal(t, "https://mmg.example/x", img.GetURL())
	assert.Equal(t, "/v/x", img.GetDirectPath())
	assert.Equal(t, uint64(42), img.GetFileLength())
	assert.Equal(t, "image/png", img.GetMimetype())
	assert.Equal(t, "look", img.GetCaption())

	_, err = buildMessage(domain.Payload{Kind: domain.PayloadImage}, nil)
	assert.Error(t, err)
}

func TestBuildMessage_Document(t *testing.T) {
	up := &uploaded{resp: whatsmeow.UploadResponse{URL: "u"}}
	msg, err := buildMessage(domain.Payload{
		Kind:     domain.PayloadDocument,
		MediaURL: "https://files.example/reports/q3.pdf?sig=1",
		Caption:  "report",
		Mimetype: "application/pdf",
	}, up)
	require.NoError(t, err)

	doc := msg.GetDocumentMessage()
	require.NotNil(t, doc)
	assert.Equal(t, "application/pdf", doc.GetMimetype())
	assert.Equal(t, "q3.pdf", doc.GetFileName())
	assert.Equal(t, "q3.pdf", doc.GetTitle())
	assert.Equal(t, "report", doc.GetCaption())
}

func TestBuildMessage_LinkPreview(t *testing.T) {
	msg, err := buildMessage(domain.Payload{
		Kind: domain.PayloadLink,
		Text: "read",
		Preview: &domain.LinkPreview{
			Title:     "read",
			MediaURL:  "https://example.com",
			MediaType: 2,
		},
	}, nil)
	require.NoError(t, err)

	ext := msg.GetExtendedTextMessage()
	require.NotNil(t, ext)
	assert.Equal(t, "read", ext.GetText())
	card := ext.GetContextInfo().GetExternalAdReply()
	require.NotNil(t, card)
	assert.Equal(t, "read", card.GetTitle())
	assert.Equal(t, "", card.GetBody())
	assert.Equal(t, "https://example.com", card.GetMediaURL())
	assert.Equal(t, int32(2), int32(card.GetMediaType()))
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "a.txt", fileNameFromURL("http://x/dir/a.txt"))
	assert.Equal(t, defaultFileName, fileNameFromURL("http://x/"))
	assert.Equal(t, defaultFileName, fileNameFromURL("::bad"))
}
