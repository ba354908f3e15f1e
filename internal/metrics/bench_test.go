package metrics

import "testing"

// BenchmarkCollector_DatagramReceived measures the per-datagram overhead
// on the receive loop (two atomic adds).
func BenchmarkCollector_DatagramReceived(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.DatagramReceived(512)
	}
}

// BenchmarkCollector_Snapshot measures the cost of the stats command.
func BenchmarkCollector_Snapshot(b *testing.B) {
	c := New()
	c.DatagramReceived(1024)
	c.RecordError("test")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Snapshot()
	}
}
