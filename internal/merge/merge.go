// Package merge reconciles incoming protocol data into the current collections.
//
// All functions are pure: they never modify their inputs and return fresh slices. A field
// the incoming record carries (non-zero, non-nil) overwrites the stored one; fields it does
// not carry are kept. Records with an empty id are skipped.
package merge

import (
	"cmp"
	"slices"

	"github.com/matheus3301/wppdesk/internal/model"
)

// Chats upserts incoming chats into existing, preserving first-seen order.
func Chats(existing, incoming []model.Chat) []model.Chat {
	return byID(existing, incoming, func(c model.Chat) string { return c.ID }, mergeChat)
}

// Contacts upserts incoming contacts into existing, preserving first-seen order.
func Contacts(existing, incoming []model.Contact) []model.Contact {
	return byID(existing, incoming, func(c model.Contact) string { return c.ID }, mergeContact)
}

// Messages de-duplicates by message id, merges repeated deliveries and returns the
// result sorted newest first. Audio enrichment on either side survives the merge.
func Messages(existing, incoming []model.Message) []model.Message {
	out := byID(existing, incoming, func(m model.Message) string { return m.Key.ID }, mergeMessage)
	SortMessages(out)
	return out
}

// MessagesByChat applies Messages to every chat present in incoming. Chats absent from
// incoming are carried over untouched.
func MessagesByChat(existing, incoming map[string][]model.Message) map[string][]model.Message {
	out := make(map[string][]model.Message, len(existing)+len(incoming))
	for chatID, msgs := range existing {
		out[chatID] = msgs
	}
	for chatID, msgs := range incoming {
		if chatID == "" || len(msgs) == 0 {
			continue
		}
		out[chatID] = Messages(existing[chatID], msgs)
	}
	return out
}

// SortMessages orders messages newest first. Equal timestamps keep their relative order.
func SortMessages(msgs []model.Message) {
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		return cmp.Compare(b.MessageTimestamp.Unix(), a.MessageTimestamp.Unix())
	})
}

// Touched returns the entries of merged whose ids appear in incoming, in merged order.
// It turns a merge result into the delta worth pushing to renderers.
func Touched(merged, incoming []model.Message) []model.Message {
	ids := make(map[string]struct{}, len(incoming))
	for _, m := range incoming {
		if m.Key.ID != "" {
			ids[m.Key.ID] = struct{}{}
		}
	}
	var out []model.Message
	for _, m := range merged {
		if _, ok := ids[m.Key.ID]; ok {
			out = append(out, m)
		}
	}
	return out
}

func byID[T any](existing, incoming []T, id func(T) string, combine func(old, in T) T) []T {
	out := make([]T, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))

	add := func(v T) {
		k := id(v)
		if i, ok := pos[k]; ok {
			out[i] = combine(out[i], v)
			return
		}
		pos[k] = len(out)
		out = append(out, v)
	}

	for _, v := range existing {
		if id(v) == "" {
			out = append(out, v)
			continue
		}
		add(v)
	}
	for _, v := range incoming {
		if id(v) == "" {
			continue
		}
		add(v)
	}
	return out
}

func mergeChat(old, in model.Chat) model.Chat {
	out := old
	if in.Name != "" {
		out.Name = in.Name
	}
	if in.UnreadCount != nil {
		out.UnreadCount = model.Count(*in.UnreadCount)
	}
	if in.ConversationTimestamp != 0 {
		out.ConversationTimestamp = in.ConversationTimestamp
	}
	if in.Tag != "" {
		out.Tag = in.Tag
	}
	if in.IsSilenced != nil {
		out.IsSilenced = model.Flag(*in.IsSilenced)
	}
	if in.IsUnread != nil {
		out.IsUnread = model.Flag(*in.IsUnread)
	}
	return out
}

func mergeContact(old, in model.Contact) model.Contact {
	out := old
	if in.Name != "" {
		out.Name = in.Name
	}
	if in.Notify != "" {
		out.Notify = in.Notify
	}
	if in.VerifiedName != "" {
		out.VerifiedName = in.VerifiedName
	}
	if in.ImgURL != "" {
		out.ImgURL = in.ImgURL
	}
	return out
}

func mergeMessage(old, in model.Message) model.Message {
	out := old.Clone()

	if in.Key.RemoteJID != "" {
		out.Key.RemoteJID = in.Key.RemoteJID
	}
	out.Key.FromMe = in.Key.FromMe
	if in.Key.Participant != "" {
		out.Key.Participant = in.Key.Participant
	}
	if in.MessageTimestamp != 0 {
		out.MessageTimestamp = in.MessageTimestamp
	}
	// Zero is StatusError and indistinguishable from an absent status; see model.Status.
	if in.Status != model.StatusError {
		out.Status = in.Status
	}
	if in.PushName != "" {
		out.PushName = in.PushName
	}
	if in.Message != nil {
		out.Message = in.Clone().Message
		out.Message.AudioMessage = mergeAudio(old.Audio(), out.Message.AudioMessage)
	}
	return out
}

// mergeAudio keeps enrichment monotonic: whatever the stored copy learned about the
// audio (local file, transcript) is carried onto the incoming payload when it lacks it.
// in is already a private copy and may be modified.
func mergeAudio(old, in *model.AudioMessage) *model.AudioMessage {
	if old == nil {
		return in
	}
	if in == nil {
		if old.LocalPath == "" && old.TranscribedText == "" {
			return nil
		}
		kept := *old
		return &kept
	}
	if in.LocalPath == "" {
		in.LocalPath = old.LocalPath
	}
	if in.TranscribedText == "" {
		in.TranscribedText = old.TranscribedText
	}
	return in
}
