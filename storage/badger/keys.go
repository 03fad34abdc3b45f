package badger

import (
	"encoding/binary"
	"time"
)

// Key prefixes for different data types
const (
	scrapeJobPrefix         = "scrjob"
	documentJobPrefix       = "docjob"
	databasePrefix          = "vecdb"
	databaseIndexNamePrefix = "vecdbidx"
	chatSessionPrefix       = "chatsess"
	chatMessagePrefix       = "chatmsg"
	chatSeqPrefix           = "chatseq"
)

// makeRecordKey generates the primary key of a record.
// Format: prefix:id
func makeRecordKey(prefix, id string) []byte {
	return []byte(prefix + ":" + id)
}

// makeRecordPrefix returns the common prefix of every primary key of a kind.
func makeRecordPrefix(prefix string) []byte {
	return []byte(prefix + ":")
}

// makeDateKey generates a composite key for the creation-time index.
// Format: prefixd:timestamp:id
func makeDateKey(prefix string, created time.Time, id string) []byte {
	p := makePartialDateKey(prefix)
	buf := make([]byte, len(p)+8+len(id))
	offset := copy(buf, p)
	// BigEndian so lexicographic order is chronological
	binary.BigEndian.PutUint64(buf[offset:], uint64(created.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makePartialDateKey returns the prefix shared by every date index key of a kind.
func makePartialDateKey(prefix string) []byte {
	return []byte(prefix + "d:")
}

// makeIndexNameKey maps a backing index name to the database that owns it.
func makeIndexNameKey(indexName string) []byte {
	return []byte(databaseIndexNamePrefix + ":" + indexName)
}

// makeChatMessageKey generates the key of one message of a session.
// Format: chatmsg:sessionID:seq
func makeChatMessageKey(sessionID string, seq uint64) []byte {
	p := makeChatMessagePrefix(sessionID)
	buf := make([]byte, len(p)+8)
	offset := copy(buf, p)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeChatMessagePrefix returns the prefix shared by the messages of a session.
func makeChatMessagePrefix(sessionID string) []byte {
	return []byte(chatMessagePrefix + ":" + sessionID + ":")
}

// makeChatSeqKey holds the last message sequence number of a session.
func makeChatSeqKey(sessionID string) []byte {
	return []byte(chatSeqPrefix + ":" + sessionID)
}
