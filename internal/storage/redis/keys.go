package redis

import (
	"fmt"

	"github.com/mcoot/mysphere/internal/model"
)

// Key prefix for all MySphere data
const keyPrefix = "mysphere"

// playerKey returns the Redis key for a Player
func playerKey(addr model.Address) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, addr)
}

// elementKey returns the Redis key for an Element
func elementKey(id model.ElementID) string {
	return fmt.Sprintf("%s:element:%s", keyPrefix, id)
}

// elementsByOwnerIndexKey returns the Redis key for the SET of element ids owned by addr
func elementsByOwnerIndexKey(addr model.Address) string {
	return fmt.Sprintf("%s:idx:elements:%s", keyPrefix, addr)
}

func txKey(hash model.TxHash) string {
	return fmt.Sprintf("%s:tx:%s", keyPrefix, hash)
}

// txsByAddressIndexKey returns the ZSET of tx hashes for addr scored by timestamp
func txsByAddressIndexKey(addr model.Address) string {
	return fmt.Sprintf("%s:idx:txs:%s", keyPrefix, addr)
}

// txsIndexKey returns the ZSET of every tx hash scored by timestamp
func txsIndexKey() string {
	return fmt.Sprintf("%s:idx:txs", keyPrefix)
}

func quoteKey(id model.QuoteID) string {
	return fmt.Sprintf("%s:quote:%s", keyPrefix, id)
}

// quotesIndexKey returns the ZSET of quote ids scored by submission time
func quotesIndexKey() string {
	return fmt.Sprintf("%s:idx:quotes", keyPrefix)
}
