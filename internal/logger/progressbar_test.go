package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    string
	}{
		{"empty", 0, 4, "[          ] 0/4 (0%)"},
		{"half", 2, 4, "[=====     ] 2/4 (50%)"},
		{"complete", 4, 4, "[==========] 4/4 (100%)"},
		{"overflow clamps", 6, 4, "[==========] 6/4 (100%)"},
		{"zero total", 0, 0, "[          ] 0/0 (0%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewProgressBar(tt.total, 10, false)
			pb.Update(tt.current)
			assert.Equal(t, tt.want, pb.Render())
		})
	}
}

func TestProgressBar_Prefix(t *testing.T) {
	pb := NewProgressBar(2, 4, false)
	pb.SetPrefix("Profiles ")
	pb.Increment()
	assert.Equal(t, "Profiles [==  ] 1/2 (50%)", pb.Render())
	assert.Equal(t, 50, pb.Percentage())
}

func TestProgressBar_ColorWrapsOutput(t *testing.T) {
	pb := NewProgressBar(1, 4, true)
	assert.Contains(t, pb.Render(), "\x1b[")
}

func TestProgressBar_ConcurrentIncrement(t *testing.T) {
	pb := NewProgressBar(100, 10, false)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pb.Increment()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, pb.Current())
	assert.Equal(t, 100, pb.Total())
}
