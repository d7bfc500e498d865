package careledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/peer"
	"github.com/medrex/care-ledger/pkg/logger"
	"github.com/medrex/care-ledger/pkg/types"
)

// txClock derives the tick from the transaction timestamp, which every
// endorser of a proposal sees identically
type txClock struct {
	stub        shim.ChaincodeStubInterface
	tickSeconds int64
}

func (c txClock) Tick() (uint64, error) {
	ts, err := c.stub.GetTxTimestamp()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction timestamp: %v", err)
	}
	secs := ts.GetSeconds()
	if secs < 0 {
		return 0, nil
	}
	return uint64(secs / c.tickSeconds), nil
}

// stubSink sets ledger events on the transaction. Fabric keeps one event
// per transaction.
type stubSink struct {
	stub shim.ChaincodeStubInterface
}

// Staged reports true: an event set on the stub is only delivered when the
// peer commits the transaction
func (s stubSink) Staged() bool { return true }

func (s stubSink) Emit(name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %v", name, err)
	}
	return s.stub.SetEvent(name, data)
}

// tokenCapability transfers value by invoking a token chaincode on the peer
type tokenCapability struct {
	stub      shim.ChaincodeStubInterface
	chaincode string
	channel   string
	log       *logger.Logger
}

func (t tokenCapability) ID() string {
	return t.chaincode
}

func (t tokenCapability) Transfer(amount uint64, sender, receiver, memo string) error {
	args := [][]byte{
		[]byte("Transfer"),
		[]byte(strconv.FormatUint(amount, 10)),
		[]byte(sender),
		[]byte(receiver),
		[]byte(memo),
	}
	resp := t.stub.InvokeChaincode(t.chaincode, args, t.channel)
	t.log.BlockchainTransaction(t.chaincode, "Transfer", succeeded(resp), t.stub.GetTxID(), map[string]interface{}{
		"channel": t.channel,
		"status":  resp.Status,
		"amount":  amount,
	})
	if !succeeded(resp) {
		return types.NewError(types.KindTaskFailed, "token chaincode %s rejected transfer: %s", t.chaincode, resp.Message).
			WithDetail("status", resp.Status)
	}
	return nil
}

func succeeded(resp peer.Response) bool {
	return resp.Status < shim.ERRORTHRESHOLD
}
