package conntab

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReadCGIAccumulatesIntoResponseBuffer(t *testing.T) {
	readFD, writeFD := pipePair(t)
	defer unix.Close(writeFD)
	require.NoError(t, unix.SetNonblock(readFD, true))

	conn := NewConnection(-1, 9100)
	conn.AttachCGI(readFD, 4242)

	_, err := unix.Write(writeFD, []byte("hello"))
	require.NoError(t, err)

	res := conn.ReadCGI()
	require.Equal(t, CGIReadPending, res)
	require.Equal(t, "hello", string(conn.ResponseBuffer))
	require.True(t, conn.HasCGIPipe())
}

func TestReadCGIEOFTransitionsToWritingResponse(t *testing.T) {
	readFD, writeFD := pipePair(t)

	conn := NewConnection(-1, 9100)
	conn.AttachCGI(readFD, 4242)

	_, err := unix.Write(writeFD, []byte("done"))
	require.NoError(t, err)
	unix.Close(writeFD)

	res := conn.ReadCGI()
	require.Equal(t, CGIReadPending, res)
	require.Equal(t, "done", string(conn.ResponseBuffer))

	res = conn.ReadCGI()
	require.Equal(t, CGIReadEOF, res)
	require.Equal(t, WritingResponse, conn.State)
	require.False(t, conn.HasCGIPipe())
}
