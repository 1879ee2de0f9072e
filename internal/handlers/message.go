package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"qwikchat/internal/models"
	"qwikchat/internal/services"
	"qwikchat/internal/utils"

	"github.com/gofiber/websocket/v2"
)

const saveTimeout = 5 * time.Second

// HandleMessage applies one inbound frame from peer.
func HandleMessage(p *Peer, msgType int, msg []byte, chatService *services.ChatService, manager *RoomManager) {
	if msgType != websocket.TextMessage {
		return
	}

	var ev models.ChatEvent
	if err := utils.SafeJSONParse(msg, &ev); err != nil {
		utils.LogError(err, "JSON Parse")
		return
	}

	switch ev.ChatType {
	case models.ChatConnect:
		handleConnect(p, &ev, manager)
	case models.ChatJoin:
		handleJoin(p, &ev, chatService, manager)
	case models.ChatText:
		handleText(p, &ev, chatService, manager)
	default:
		log.Printf("Unknown chat_type: %s", ev.ChatType)
	}
}

func handleConnect(p *Peer, ev *models.ChatEvent, manager *RoomManager) {
	if ev.UserID == "" {
		return
	}
	manager.Identify(p.ID, ev.UserID)
}

func handleJoin(p *Peer, ev *models.ChatEvent, chatService *services.ChatService, manager *RoomManager) {
	roomID := ev.RoomID
	if roomID == "" && len(ev.Value) > 0 {
		roomID = ev.Value[0]
	}
	if roomID == "" {
		return
	}
	if manager.UserID(p.ID) == "" && ev.UserID != "" {
		manager.Identify(p.ID, ev.UserID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if _, err := chatService.GetRoom(ctx, roomID); err != nil {
		utils.LogError(err, "Join "+roomID)
		return
	}

	if previous := manager.Join(roomID, p.ID); previous != "" && previous != roomID {
		log.Printf("conn %s left room %s", p.ID, previous)
	}
}

func handleText(p *Peer, ev *models.ChatEvent, chatService *services.ChatService, manager *RoomManager) {
	currentRoom := manager.CurrentRoom(p.ID)
	if currentRoom == "" || ev.RoomID != currentRoom {
		log.Printf("conn %s sent text for room %q while in %q", p.ID, ev.RoomID, currentRoom)
		return
	}

	userID := manager.UserID(p.ID)
	if userID == "" {
		userID = ev.UserID
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	saved, err := chatService.PostMessage(ctx, currentRoom, userID, ev.Text(), ev.ClientID)
	if err != nil {
		utils.LogError(err, "SaveMessage")
		return
	}

	id, _ := strconv.ParseInt(saved.ID, 10, 64)

	// Send to everyone including sender so they know it's confirmed
	manager.Broadcast(currentRoom, models.ChatEvent{
		ChatType: models.ChatText,
		Value:    []string{saved.Content},
		RoomID:   currentRoom,
		UserID:   userID,
		ID:       id,
		ClientID: saved.ClientID,
	})
}
