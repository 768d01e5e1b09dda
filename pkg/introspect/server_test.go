package introspect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	pz "github.com/weberc2/httpeasy"

	"github.com/weberc2/konixfs/pkg/filedesc"
	"github.com/weberc2/konixfs/pkg/fsserver"
	"github.com/weberc2/konixfs/pkg/inode"
	"github.com/weberc2/konixfs/pkg/ipc"
	. "github.com/weberc2/konixfs/pkg/types"
)

type rendezvousFake struct {
	stat fsserver.Stat
	err  error
	sent []ipc.Message
}

func (rf *rendezvousFake) SendRecv(
	ctx context.Context,
	self ProcNr,
	to ProcNr,
	msg ipc.Message,
) (ipc.Message, error) {
	msg.Source = self
	rf.sent = append(rf.sent, msg)
	if rf.err != nil {
		return ipc.Message{}, rf.err
	}
	return ipc.Message{
		Source:  to,
		Type:    ipc.MsgSyscallRet,
		Payload: rf.stat,
	}, nil
}

func readAll(s pz.Serializer) ([]byte, error) {
	writerTo, err := s()
	if err != nil {
		return nil, fmt.Errorf("serializing: %w", err)
	}

	var b bytes.Buffer
	if _, err := writerTo.WriteTo(&b); err != nil {
		return nil, fmt.Errorf("copying data to buffer: %w", err)
	}

	return b.Bytes(), nil
}

func TestServer_Routes(t *testing.T) {
	rendezvous := rendezvousFake{stat: fsserver.Stat{
		Superblocks: []Superblock{{Magic: MagicV1, Dev: RootDev}},
		Inodes: []inode.Inode{{
			InodeRecord: InodeRecord{Mode: ModeDirectory, Size: 64},
			Dev:         RootDev,
			Num:         InoRoot,
			Count:       1,
		}},
		Descriptors: []filedesc.Entry{{
			Handle:     1,
			Descriptor: filedesc.Descriptor{Inode: 1, Count: 2},
		}},
		Pending: []fsserver.Pending{{
			Proc:  7,
			Op:    "READ",
			Count: 16,
			Since: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
	}}
	server := Server{IPC: &rendezvous, Self: 5, FS: 3}

	for _, testCase := range []struct {
		name    string
		handler pz.Handler
		wanted  string
	}{
		{
			name:    "superblocks",
			handler: server.Superblocks(),
			wanted:  `[{"magic":273,"nrInodes":0,"nrInodeSectors":0,"nrSectors":0,"nrImapSectors":0,"nrSmapSectors":0,"firstSector":0,"rootInode":0,"inodeSize":0,"inodeSizeOff":0,"inodeStartOff":0,"dirEntrySize":0,"dirEntryInoOff":0,"dirEntryNameOff":0,"dev":"3,33"}]`,
		},
		{
			name:    "inodes",
			handler: server.Inodes(),
			wanted:  `[{"mode":"Directory","size":64,"startSector":0,"nrSectors":0,"dev":"3,33","num":1,"count":1}]`,
		},
		{
			name:    "descriptors",
			handler: server.Descriptors(),
			wanted:  `[{"handle":1,"inode":1,"pos":0,"mode":0,"count":2}]`,
		},
		{
			name:    "pending",
			handler: server.Pending(),
			wanted:  `[{"proc":7,"op":"READ","fd":0,"count":16,"since":"2026-01-02T03:04:05Z"}]`,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			rsp := testCase.handler(pz.Request{})
			if rsp.Status != http.StatusOK {
				t.Fatalf("wanted `%d`; found `%d`", http.StatusOK, rsp.Status)
			}
			data, err := readAll(rsp.Data)
			if err != nil {
				t.Fatalf("reading body: unexpected err: %v", err)
			}
			var found, wanted interface{}
			if err := json.Unmarshal(data, &found); err != nil {
				t.Fatalf("unmarshaling body `%s`: %v", data, err)
			}
			if err := json.Unmarshal([]byte(testCase.wanted), &wanted); err != nil {
				t.Fatalf("unmarshaling wanted body: %v", err)
			}
			foundJSON, _ := json.Marshal(found)
			wantedJSON, _ := json.Marshal(wanted)
			if !bytes.Equal(foundJSON, wantedJSON) {
				t.Fatalf("wanted `%s`; found `%s`", wantedJSON, foundJSON)
			}
		})
	}

	for _, msg := range rendezvous.sent {
		if msg.Type != ipc.MsgFSStat || msg.Source != 5 {
			t.Fatalf(
				"wanted `FS_STAT` from `5`; found `%s` from `%d`",
				msg.Type,
				msg.Source,
			)
		}
	}
}

func TestServer_EmptyTables(t *testing.T) {
	server := Server{IPC: &rendezvousFake{}, Self: 5, FS: 3}
	rsp := server.Pending()(pz.Request{})
	data, err := readAll(rsp.Data)
	if err != nil {
		t.Fatalf("reading body: unexpected err: %v", err)
	}
	if string(bytes.TrimSpace(data)) != "[]" {
		t.Fatalf("wanted `[]`; found `%s`", data)
	}
}

func TestServer_RendezvousFailure(t *testing.T) {
	server := Server{
		IPC:  &rendezvousFake{err: errors.New("mailbox gone")},
		Self: 5,
		FS:   3,
	}
	rsp := server.Inodes()(pz.Request{})
	if rsp.Status != http.StatusInternalServerError {
		t.Fatalf(
			"wanted `%d`; found `%d`",
			http.StatusInternalServerError,
			rsp.Status,
		)
	}
}
