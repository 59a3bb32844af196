package http

import (
	"encoding/json"

	"github.com/parley-chat/parley-server/internal/core"
	"github.com/parley-chat/parley-server/internal/proto"
)

// inboundToCommand maps a wire envelope to a core command. A returned
// proto.Error means the payload was malformed; the command is dropped with
// no side effects and only the requester hears about it.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &join); err != nil {
				return nil, nil, err
			}
		}
		return &core.Command{Kind: core.CommandJoin, Name: join.Name}, nil, nil

	case proto.InboundTypeMessage:
		// Accepts either a bare string or {text, room}.
		var text string
		if err := json.Unmarshal(inbound.Data, &text); err == nil {
			return &core.Command{Kind: core.CommandSendMessage, Text: text}, nil, nil
		}
		var msg proto.MessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandSendMessage, Room: msg.Room, Text: msg.Text}, nil, nil

	case proto.InboundTypeJoinRoom:
		var room string
		if err := json.Unmarshal(inbound.Data, &room); err != nil {
			return nil, nil, err
		}
		if room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		return &core.Command{Kind: core.CommandJoinRoom, Room: room}, nil, nil

	case proto.InboundTypeCreateDM:
		var peer string
		if err := json.Unmarshal(inbound.Data, &peer); err != nil {
			return nil, nil, err
		}
		if peer == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "peer user id is required"}, nil
		}
		return &core.Command{Kind: core.CommandCreateDM, PeerID: peer}, nil, nil

	case proto.InboundTypeReaction:
		var react proto.ReactionData
		if err := json.Unmarshal(inbound.Data, &react); err != nil {
			return nil, nil, err
		}
		if react.MessageID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "messageId is required"}, nil
		}
		return &core.Command{Kind: core.CommandReact, MessageID: react.MessageID, Emoji: react.Emoji}, nil, nil

	case proto.InboundTypeEditMessage:
		var edit proto.EditData
		if err := json.Unmarshal(inbound.Data, &edit); err != nil {
			return nil, nil, err
		}
		if edit.MessageID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "messageId is required"}, nil
		}
		return &core.Command{Kind: core.CommandEditMessage, MessageID: edit.MessageID, Text: edit.Text}, nil, nil

	case proto.InboundTypeDeleteMessage:
		var del proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, nil, err
		}
		if del.MessageID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "messageId is required"}, nil
		}
		return &core.Command{Kind: core.CommandDeleteMessage, MessageID: del.MessageID}, nil, nil

	case proto.InboundTypeTyping:
		return &core.Command{Kind: core.CommandTyping}, nil, nil

	case proto.InboundTypeStopTyping:
		return &core.Command{Kind: core.CommandStopTyping}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUsersList:
		return eventOutbound(proto.EventUsersList, usersPayload(event.Users))
	case core.EventUserJoined:
		return eventOutbound(proto.EventUserJoined, userPayload(event.User))
	case core.EventUserLeft:
		return eventOutbound(proto.EventUserLeft, userPayload(event.User))
	case core.EventJoined:
		return eventOutbound(proto.EventJoined, userPayload(event.User))
	case core.EventRoomsList:
		rooms := make([]proto.RoomSummary, 0, len(event.Rooms))
		for _, room := range event.Rooms {
			rooms = append(rooms, proto.RoomSummary{Name: room.Name, Unread: room.Unread})
		}
		return eventOutbound(proto.EventRoomsList, rooms)
	case core.EventRoomJoined:
		messages := make([]proto.MessagePayload, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messagePayload(msg))
		}
		return eventOutbound(proto.EventRoomJoined, proto.RoomJoinedPayload{Room: event.Room, Messages: messages})
	case core.EventDMInvite:
		return eventOutbound(proto.EventDMInvite, proto.DMInvitePayload{Room: event.Room, From: userPayload(event.User)})
	case core.EventMessage:
		return eventOutbound(proto.EventMessage, messagePayload(event.Message))
	case core.EventMessageUpdated:
		return eventOutbound(proto.EventMessageUpdated, messagePayload(event.Message))
	case core.EventMessageDeleted:
		return eventOutbound(proto.EventMessageDeleted, proto.DeletedPayload{MessageID: event.MessageID})
	case core.EventReaction:
		return eventOutbound(proto.EventReaction, proto.ReactionPayload{
			MessageID:      event.MessageID,
			Reactions:      event.Reactions,
			ReactionByUser: event.ReactionByUser,
		})
	case core.EventTyping:
		return eventOutbound(proto.EventTyping, userPayload(event.User))
	case core.EventStopTyping:
		return eventOutbound(proto.EventStopTyping, userPayload(event.User))
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func userPayload(u core.User) proto.User {
	return proto.User{ID: u.ID, Name: u.Name}
}

func usersPayload(users []core.User) []proto.User {
	out := make([]proto.User, 0, len(users))
	for _, u := range users {
		out = append(out, userPayload(u))
	}
	return out
}

func messagePayload(msg *core.Message) proto.MessagePayload {
	if msg == nil {
		return proto.MessagePayload{}
	}
	out := proto.MessagePayload{
		ID:             msg.ID,
		Room:           msg.Room,
		Author:         proto.User{ID: msg.Author.ID, Name: msg.Author.Name},
		Text:           msg.Text,
		TS:             msg.CreatedAt.UnixMilli(),
		Edited:         msg.Edited,
		Reactions:      msg.Reactions,
		ReactionByUser: msg.ReactionByUser,
	}
	if msg.EditedAt != nil {
		at := msg.EditedAt.UnixMilli()
		out.EditedAt = &at
	}
	return out
}
