//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IMessageRepository is the durable message store. The in-memory
// recent cache in the runtime package is an accelerator on top of it,
// never a replacement.
type IMessageRepository interface {
	Save(message domain.ChatMessage) error
	// Recent returns the most recent public messages, newest first.
	Recent(limit int) ([]domain.ChatMessage, error)
	// Between returns the private messages exchanged between two
	// users, newest first.
	Between(userA, userB string, limit int) ([]domain.ChatMessage, error)
	// SessionsFor lists a user's private conversations, most recently
	// active first.
	SessionsFor(userID string) ([]domain.ChatSession, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// diskMessage is the stored shape of a message. Values are JSON: the
// whole event surface of this system is JSON on the wire, and storage
// reuses the same codec.
type diskMessage struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName"`
	Content      string    `json:"content"`
	Kind         string    `json:"kind"`
	ReceiverID   string    `json:"receiverId,omitempty"`
	ReceiverName string    `json:"receiverName,omitempty"`
	At           time.Time `json:"at"`
}

type diskSession struct {
	OtherUserID   string    `json:"otherUserId"`
	OtherUsername string    `json:"otherUsername"`
	LastMessage   string    `json:"lastMessage"`
	LastTime      time.Time `json:"lastTime"`
}

// Key layout. The 19-digit zero padded nanosecond timestamp makes
// lexicographic order chronological; the UUID suffix disambiguates
// two messages landing on the same nanosecond.
//
//	msg:pub:{ts19}:{uuid}
//	msg:prv:{pair}:{ts19}:{uuid}
//	sess:{owner}:{other}
const (
	publicPrefix  = "msg:pub:"
	privatePrefix = "msg:prv:"
	sessionPrefix = "sess:"
	// seekEnd sorts after every padded timestamp under a prefix.
	seekEnd = "9999999999999999999"
)

// pairKey is the order-independent key segment for a private
// conversation between two users.
func pairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "~" + userB
}

// Save persists a public or private message. System messages are fire
// and forget by contract and are never written.
func (m MessageRepository) Save(message domain.ChatMessage) error {
	if message.Kind == domain.KindSystem {
		m.log.Debug("Skipping persistence of system message", "id", message.ID)
		return nil
	}

	bytes, err := json.Marshal(fromChatMessage(message))
	if err != nil {
		return err
	}

	var key string
	switch message.Kind {
	case domain.KindPrivate:
		key = fmt.Sprintf("%s%s:%019d:%s",
			privatePrefix,
			pairKey(message.SenderID, message.ReceiverID),
			message.Timestamp.UnixNano(),
			message.ID,
		)
	default:
		key = fmt.Sprintf("%s%019d:%s",
			publicPrefix,
			message.Timestamp.UnixNano(),
			message.ID,
		)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), bytes); err != nil {
			return err
		}
		if message.Kind != domain.KindPrivate {
			return nil
		}
		// Private messages also refresh both conversation summaries,
		// one per direction, so SessionsFor is a single prefix scan.
		return m.updateSessions(txn, message)
	})
}

func (m MessageRepository) updateSessions(txn *badger.Txn, message domain.ChatMessage) error {
	senderSide := diskSession{
		OtherUserID:   message.ReceiverID,
		OtherUsername: message.ReceiverName,
		LastMessage:   message.Content,
		LastTime:      message.Timestamp,
	}
	receiverSide := diskSession{
		OtherUserID:   message.SenderID,
		OtherUsername: message.SenderName,
		LastMessage:   message.Content,
		LastTime:      message.Timestamp,
	}

	for key, session := range map[string]diskSession{
		sessionPrefix + message.SenderID + ":" + message.ReceiverID: senderSide,
		sessionPrefix + message.ReceiverID + ":" + message.SenderID: receiverSide,
	} {
		bytes, err := json.Marshal(session)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(key), bytes); err != nil {
			return err
		}
	}
	return nil
}

func (m MessageRepository) Recent(limit int) ([]domain.ChatMessage, error) {
	return m.scanReverse(publicPrefix, limit)
}

func (m MessageRepository) Between(userA, userB string, limit int) ([]domain.ChatMessage, error) {
	return m.scanReverse(privatePrefix+pairKey(userA, userB)+":", limit)
}

// scanReverse walks a message prefix newest first, collecting up to
// limit entries. The padded timestamp in the key keeps the iteration
// chronological without decoding values.
func (m MessageRepository) scanReverse(prefixStr string, limit int) ([]domain.ChatMessage, error) {
	var byteMessages [][]byte
	prefix := []byte(prefixStr)

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append([]byte{}, prefix...)
		seekKey = append(seekKey, []byte(seekEnd)...)

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(byteMessages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(byteMessages))
	for _, b := range byteMessages {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, err
		}
		message, err := toChatMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (m MessageRepository) SessionsFor(userID string) ([]domain.ChatSession, error) {
	var stored []diskSession
	prefix := []byte(sessionPrefix + userID + ":")

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var ds diskSession
				if err := json.Unmarshal(value, &ds); err != nil {
					return err
				}
				stored = append(stored, ds)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sessions := lo.Map(stored, func(ds diskSession, _ int) domain.ChatSession {
		return domain.ChatSession(ds)
	})

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastTime.After(sessions[j].LastTime)
	})
	return sessions, nil
}

func fromChatMessage(message domain.ChatMessage) diskMessage {
	return diskMessage{
		ID:           message.ID.String(),
		SenderID:     message.SenderID,
		SenderName:   message.SenderName,
		Content:      message.Content,
		Kind:         string(message.Kind),
		ReceiverID:   message.ReceiverID,
		ReceiverName: message.ReceiverName,
		At:           message.Timestamp,
	}
}

func toChatMessage(dm diskMessage) (domain.ChatMessage, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{
		ID:           parsedID,
		SenderID:     dm.SenderID,
		SenderName:   dm.SenderName,
		Content:      dm.Content,
		Kind:         domain.MessageKind(dm.Kind),
		ReceiverID:   dm.ReceiverID,
		ReceiverName: dm.ReceiverName,
		Timestamp:    dm.At.UTC(),
	}, nil
}

