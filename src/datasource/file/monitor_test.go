package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileMonitorFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "kyc.xlsx")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0644))

	monitor, err := NewFileMonitor(target)
	require.NoError(t, err)
	defer monitor.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- monitor.Watch(ctx, func(path string) {
			select {
			case fired <- path:
			default:
			}
			cancel()
		})
	}()

	// 其他文件的写入不触发
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("v2"), 0644))

	// handler调用cancel后Watch返回；超时同样返回
	require.NoError(t, <-done)
	select {
	case path := <-fired:
		abs, _ := filepath.Abs(target)
		require.Equal(t, abs, path)
	default:
		t.Fatal("handler was not called")
	}
}
