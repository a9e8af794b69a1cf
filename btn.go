package main

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// suggestionRow is one selectable title in the picker list.
type suggestionRow struct {
	Header      string `json:"header,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ID          string `json:"id"`
}

// sendSuggestionList shows the matched titles as a single_select native flow.
// Each row id carries "confirm:<token>:<index>" so the pick comes back with
// the session token baked in. A numbered-reply fallback is kept for clients
// that cannot render the flow.
func sendSuggestionList(client *whatsmeow.Client, evt *events.Message, token string, titles []string) error {
	rows := make([]suggestionRow, 0, len(titles))
	for i, title := range titles {
		rows = append(rows, suggestionRow{
			Header: "🎬",
			Title:  title,
			ID:     fmt.Sprintf("confirm:%s:%d", token, i),
		})
	}
	listParams := map[string]interface{}{
		"title": "✨ Select Your Movie",
		"sections": []map[string]interface{}{
			{
				"title": fmt.Sprintf("Found %d matches", len(titles)),
				"rows":  rows,
			},
		},
	}
	body := fmt.Sprintf("🔍 I found *%d* possible matches.\nOpen the menu below and pick the right one, or reply with its number.", len(titles))
	return sendNativeFlow(client, evt, "🎬 *Search Results*", body, "single_select", listParams)
}

func sendNativeFlow(client *whatsmeow.Client, evt *events.Message, title string, body string, btnName string, params interface{}) error {
	jsonBytes, err := json.Marshal(params)
	if err != nil {
		fmt.Printf("❌ JSON Error: %v\n", err)
		return err
	}

	buttons := []*waE2E.InteractiveMessage_NativeFlowMessage_NativeFlowButton{
		{
			Name:             proto.String(btnName),
			ButtonParamsJSON: proto.String(string(jsonBytes)),
		},
	}

	msg := &waE2E.Message{
		ViewOnceMessage: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{
				InteractiveMessage: &waE2E.InteractiveMessage{
					Header: &waE2E.InteractiveMessage_Header{
						Title:              proto.String(title),
						HasMediaAttachment: proto.Bool(false),
					},
					Body: &waE2E.InteractiveMessage_Body{
						Text: proto.String(body),
					},
					Footer: &waE2E.InteractiveMessage_Footer{
						Text: proto.String("🎬 " + BOT_NAME),
					},
					InteractiveMessage: &waE2E.InteractiveMessage_NativeFlowMessage_{
						NativeFlowMessage: &waE2E.InteractiveMessage_NativeFlowMessage{
							Buttons:           buttons,
							MessageParamsJSON: proto.String("{}"),
							MessageVersion:    proto.Int32(3),
						},
					},
					ContextInfo: &waE2E.ContextInfo{
						StanzaID:      proto.String(evt.Info.ID),
						Participant:   proto.String(evt.Info.Sender.String()),
						QuotedMessage: evt.Message,
					},
				},
			},
		},
	}

	_, err = client.SendMessage(context.Background(), evt.Info.Chat, msg)
	if err != nil {
		fmt.Printf("❌ [FLOW] Send failed: %v\n", err)
	}
	return err
}

// sendPlanButtons shows the premium plans as copy-style rows.
func sendPlanButtons(client *whatsmeow.Client, evt *events.Message) error {
	rows := make([]suggestionRow, 0, len(premiumPlans))
	for _, p := range premiumPlans {
		rows = append(rows, suggestionRow{
			Header: "💎",
			Title:  p.Name,
			ID:     "plan:" + p.Code,
		})
	}
	listParams := map[string]interface{}{
		"title": "💎 Premium Plans",
		"sections": []map[string]interface{}{
			{"title": "Choose a plan", "rows": rows},
		},
	}
	body := "💎 *Go Premium!*\nUnlimited searches, files never auto-delete.\nPick a plan below."
	return sendNativeFlow(client, evt, "💎 *Premium*", body, "single_select", listParams)
}

// extractRowID pulls the selected row id from a native-flow or template
// button reply, or "" if this message is not a pick.
func extractRowID(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if ir := msg.GetInteractiveResponseMessage(); ir != nil {
		if nf := ir.GetNativeFlowResponseMessage(); nf != nil {
			var payload struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal([]byte(nf.GetParamsJSON()), &payload); err == nil && payload.ID != "" {
				return payload.ID
			}
		}
	}
	if lr := msg.GetListResponseMessage(); lr != nil {
		if row := lr.GetSingleSelectReply(); row != nil {
			return row.GetSelectedRowID()
		}
	}
	if br := msg.GetButtonsResponseMessage(); br != nil {
		return br.GetSelectedButtonID()
	}
	return ""
}

// sendTextTo sends a plain text message outside of an event context, for
// scheduler announcements and admin pings.
func sendTextTo(client *whatsmeow.Client, jid types.JID, text string) {
	if client == nil || jid.IsEmpty() {
		return
	}
	_, err := client.SendMessage(context.Background(), jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		fmt.Println("⚠️ [SEND] Failed:", err)
	}
}
