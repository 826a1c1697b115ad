package observability

import "testing"

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordPacketSent("chat", 42)
	RecordPacketReceived("cursor", 56)
	SetPeersConnected(3)
	RecordHandshakeFailure("wrong_code")
	RecordCanvasTransfer("inbound", "complete")
	RecordProtocolError()
}
