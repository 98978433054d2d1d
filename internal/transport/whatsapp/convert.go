package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"wagate/internal/domain"
)

const (
	defaultImageMimetype = "image/jpeg"
	defaultFileName      = "file"
)

// uploaded is a media blob already stored on the media servers.
type uploaded struct {
	resp     whatsmeow.UploadResponse
	mimetype string
}

// qrUpdate maps a QR channel item to a connection update. Items that need
// no action report false.
func qrUpdate(item whatsmeow.QRChannelItem) (domain.ConnectionUpdate, bool) {
	switch item.Event {
	case whatsmeow.QRChannelEventCode:
		return domain.ConnectionUpdate{State: domain.ConnectionQR, QR: item.Code}, true
	case whatsmeow.QRChannelSuccess.Event, whatsmeow.QRChannelScannedWithoutMultidevice.Event:
		return domain.ConnectionUpdate{}, false
	case whatsmeow.QRChannelTimeout.Event:
		return closed(domain.CauseQRTimeout, errors.New("pairing QR expired")), true
	case whatsmeow.QRChannelClientOutdated.Event:
		return closed(domain.CauseClientOutdated, errors.New("client outdated")), true
	case whatsmeow.QRChannelEventError:
		return closed(domain.CauseConnectFailed, item.Error), true
	default:
		return closed(domain.CauseConnectFailed, fmt.Errorf("pairing ended: %s", item.Event)), true
	}
}

// closeUpdate classifies whatsmeow's disconnect signals. Only a logout
// (pushed, or reported as a connect failure) is terminal.
func closeUpdate(evt interface{}) (domain.ConnectionUpdate, bool) {
	switch e := evt.(type) {
	case *events.LoggedOut:
		return closed(domain.CauseLoggedOut, fmt.Errorf("logged out: %v", e.Reason)), true
	case *events.ConnectFailure:
		err := fmt.Errorf("connect failure %v: %s", e.Reason, e.Message)
		if e.Reason.IsLoggedOut() {
			return closed(domain.CauseLoggedOut, err), true
		}
		return closed(domain.CauseConnectFailed, err), true
	case *events.Disconnected:
		return closed(domain.CauseConnectionLost, nil), true
	case *events.StreamReplaced:
		return closed(domain.CauseStreamReplaced, nil), true
	case *events.StreamError:
		return closed(domain.CauseStreamError, fmt.Errorf("stream error %s", e.Code)), true
	case *events.ClientOutdated:
		return closed(domain.CauseClientOutdated, nil), true
	case *events.TemporaryBan:
		return closed(domain.CauseTemporaryBan, errors.New(e.String())), true
	default:
		return domain.ConnectionUpdate{}, false
	}
}

func closed(cause domain.CloseCause, err error) domain.ConnectionUpdate {
	return domain.ConnectionUpdate{State: domain.ConnectionClosed, Cause: cause, Err: err}
}

func rawFromEvent(e *events.Message) domain.RawMessage {
	return domain.RawMessage{
		ID:        domain.MessageID(e.Info.ID),
		RemoteID:  senderJID(e.Info.MessageSource).String(),
		FromMe:    e.Info.IsFromMe,
		Text:      e.Message.GetConversation(),
		Timestamp: e.Info.Timestamp,
	}
}

// senderJID prefers the phone-number JID when the sender is addressed by
// LID, so inbound ids canonicalize like outbound phone numbers.
func senderJID(src types.MessageSource) types.JID {
	if src.Sender.Server == types.HiddenUserServer && !src.SenderAlt.IsEmpty() {
		return src.SenderAlt
	}
	return src.Sender
}

// pnLookup resolves a LID to the phone-number JID it stands for.
type pnLookup func(ctx context.Context, lid types.JID) (types.JID, error)

// resolveLIDs rewrites remote ids that are still LIDs using lookup. Ids
// with no known mapping are left untouched and counted.
func resolveLIDs(ctx context.Context, msgs []domain.RawMessage, lookup pnLookup) (unresolved int) {
	for i := range msgs {
		jid, err := types.ParseJID(msgs[i].RemoteID)
		if err != nil || jid.Server != types.HiddenUserServer {
			continue
		}
		pn, err := lookup(ctx, jid.ToNonAD())
		if err != nil || pn.IsEmpty() {
			unresolved++
			continue
		}
		msgs[i].RemoteID = pn.ToNonAD().String()
	}
	return unresolved
}

// historyBatch flattens a history sync blob into one non-live batch.
func historyBatch(e *events.HistorySync) domain.MessageBatch {
	batch := domain.MessageBatch{Live: false}
	for _, conv := range e.Data.GetConversations() {
		for _, hm := range conv.GetMessages() {
			wm := hm.GetMessage()
			if wm == nil {
				continue
			}
			key := wm.GetKey()
			remote := key.GetRemoteJID()
			if p := wm.GetParticipant(); p != "" {
				remote = p
			}
			batch.Messages = append(batch.Messages, domain.RawMessage{
				ID:        domain.MessageID(key.GetID()),
				RemoteID:  remote,
				FromMe:    key.GetFromMe(),
				Text:      wm.GetMessage().GetConversation(),
				Timestamp: time.Unix(int64(wm.GetMessageTimestamp()), 0).UTC(),
			})
		}
	}
	return batch
}

// buildMessage renders payload as a protocol message. Media kinds need the
// upload result.
func buildMessage(p domain.Payload, up *uploaded) (*waE2E.Message, error) {
	switch p.Kind {
	case domain.PayloadText:
		return &waE2E.Message{Conversation: proto.String(p.Text)}, nil

	case domain.PayloadImage:
		if up == nil {
			return nil, errors.New("image payload without upload")
		}
		mimetype := up.mimetype
		if mimetype == "" {
			mimetype = defaultImageMimetype
		}
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.resp.URL),
			DirectPath:    proto.String(up.resp.DirectPath),
			MediaKey:      up.resp.MediaKey,
			FileEncSHA256: up.resp.FileEncSHA256,
			FileSHA256:    up.resp.FileSHA256,
			FileLength:    proto.Uint64(up.resp.FileLength),
			Mimetype:      proto.String(mimetype),
			Caption:       proto.String(p.Caption),
		}}, nil

	case domain.PayloadDocument:
		if up == nil {
			return nil, errors.New("document payload without upload")
		}
		name := p.FileName
		if name == "" {
			name = fileNameFromURL(p.MediaURL)
		}
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(up.resp.URL),
			DirectPath:    proto.String(up.resp.DirectPath),
			MediaKey:      up.resp.MediaKey,
			FileEncSHA256: up.resp.FileEncSHA256,
			FileSHA256:    up.resp.FileSHA256,
			FileLength:    proto.Uint64(up.resp.FileLength),
			Mimetype:      proto.String(p.Mimetype),
			FileName:      proto.String(name),
			Title:         proto.String(name),
			Caption:       proto.String(p.Caption),
		}}, nil

	case domain.PayloadLink:
		text := &waE2E.ExtendedTextMessage{Text: proto.String(p.Text)}
		if pv := p.Preview; pv != nil {
			text.ContextInfo = &waE2E.ContextInfo{
				ExternalAdReply: &waE2E.ContextInfo_ExternalAdReplyInfo{
					Title:     proto.String(pv.Title),
					Body:      proto.String(pv.Body),
					MediaURL:  proto.String(pv.MediaURL),
					SourceURL: proto.String(pv.MediaURL),
					MediaType: waE2E.ContextInfo_ExternalAdReplyInfo_MediaType(pv.MediaType).Enum(),
				},
			}
		}
		return &waE2E.Message{ExtendedTextMessage: text}, nil

	default:
		return nil, fmt.Errorf("unsupported payload kind %d", p.Kind)
	}
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return defaultFileName
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return defaultFileName
	}
	return name
}
