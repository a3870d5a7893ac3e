package capability

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"netstream/internal/protocol"
	"netstream/internal/session"
)

// Ping sends Count ping packets and reports each round trip from the
// matching pong.
type Ping struct {
	Count    int
	Interval time.Duration // between pings (default 1s)
	Timeout  time.Duration // per pong (default 2s)
}

// PingStats summarises a Ping run.
type PingStats struct {
	Sent, Received int
	Min, Max, Avg  time.Duration
}

// Handle runs the pings and prints one line per reply plus a summary.
func (p *Ping) Handle(ctx context.Context, sess *session.Session) error {
	_, err := p.Run(ctx, sess)
	return err
}

// Run is Handle returning the statistics.
func (p *Ping) Run(ctx context.Context, sess *session.Session) (PingStats, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	var stats PingStats
	if err := sendHello(sess); err != nil {
		return stats, err
	}

	start := time.Now()
	pongs := make(chan uint64, 8)
	done := make(chan error, 1)
	go func() {
		done <- dispatch(sess, func(typ uint16, payload []byte) error {
			if typ == protocol.TypePong {
				select {
				case pongs <- binary.BigEndian.Uint64(payload):
				default:
				}
			}
			return nil
		})
	}()

	var total time.Duration
	for seq := 1; seq <= p.Count; seq++ {
		var payload [8]byte
		stamp := uint64(time.Since(start))
		binary.BigEndian.PutUint64(payload[:], stamp)
		if err := sess.Conn.SendPacket(protocol.TypePing, payload[:]); err != nil {
			return stats, err
		}
		stats.Sent++

		rtt, err := p.await(ctx, pongs, done, stamp, start, timeout)
		switch {
		case err != nil:
			return stats, err
		case rtt < 0:
			fmt.Fprintf(sess.Stdout, "seq=%d timeout\n", seq)
		default:
			stats.Received++
			total += rtt
			if stats.Min == 0 || rtt < stats.Min {
				stats.Min = rtt
			}
			if rtt > stats.Max {
				stats.Max = rtt
			}
			fmt.Fprintf(sess.Stdout, "seq=%d from %s time=%s\n", seq, sess.Peer, rtt.Round(time.Microsecond))
		}

		if seq < p.Count {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}
	if stats.Received > 0 {
		stats.Avg = total / time.Duration(stats.Received)
	}
	fmt.Fprintf(sess.Stdout, "%d sent, %d received, min/avg/max %s/%s/%s\n",
		stats.Sent, stats.Received,
		stats.Min.Round(time.Microsecond), stats.Avg.Round(time.Microsecond), stats.Max.Round(time.Microsecond))

	return stats, sess.Conn.SendPacket(protocol.TypeGoodbye, nil)
}

// await waits for the pong echoing stamp.  It returns -1 on timeout.
func (p *Ping) await(ctx context.Context, pongs <-chan uint64, done <-chan error, stamp uint64, start time.Time, timeout time.Duration) (time.Duration, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case echoed := <-pongs:
			if echoed != stamp {
				continue // late reply to an earlier ping
			}
			return time.Since(start) - time.Duration(stamp), nil
		case err := <-done:
			if err == nil {
				err = fmt.Errorf("peer left after %s", time.Since(start).Round(time.Millisecond))
			}
			return 0, err
		case <-timer.C:
			return -1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
