package transport

import "github.com/DmMeta/ChordSeek/internal/chord"

// Wire types of the peer RPC surface. Field names are shared by every
// node of a ring and must not drift between releases.

type joinRequest struct {
	IPAddr       string `json:"ip_addr"`
	Init         bool   `json:"init"`
	TransferData bool   `json:"transfer_data"`
}

type hopsResponse struct {
	NumHops int64 `json:"num_hops"`
}

type setNeighborRequest struct {
	IPAddr string `json:"ip_addr"`
}

type fingerUpdateRequest struct {
	IPAddr string `json:"ip_addr"`
	Index  int    `json:"index"`
}

type fixFingerRequest struct {
	IPAddr          string `json:"ip_addr"`
	SuccessorIPAddr string `json:"successor_ip_addr"`
	Index           int    `json:"index"`
}

type dataRequest struct {
	NodeID uint64 `json:"node_id"`
}

type recordsPayload struct {
	Data []chord.Record `json:"data"`
}

type fingerTableResponse struct {
	Data []chord.FingerEntry `json:"data"`
}
