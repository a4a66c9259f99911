package daemond

import (
	"encoding/json"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/ipc"
)

// registerHandlers wires every spec.md §4.6 message type to the
// Orchestrator/Log Manager, matching the IPC wire shape to the internal
// component APIs.
func registerHandlers(s *ipc.Server, c *Core) {
	s.Handle(ipc.TypePing, func(req ipc.Request) (any, error) { return nil, nil })

	s.Handle(ipc.TypeStart, func(req ipc.Request) (any, error) {
		var data ipc.StartData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, &config.Error{Kind: config.ErrProtocolError, Message: "invalid start payload: " + err.Error()}
		}
		var pc config.ProcessConfig
		if err := json.Unmarshal(data.Config, &pc); err != nil {
			return nil, &config.Error{Kind: config.ErrInvalidConfig, Message: "invalid process config: " + err.Error()}
		}
		mp, err := c.Orchestrator().Start(pc)
		if err != nil {
			return nil, err
		}
		return mp.Snapshot(), nil
	})

	s.Handle(ipc.TypeStop, func(req ipc.Request) (any, error) {
		var data ipc.ProcessRefData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, &config.Error{Kind: config.ErrProtocolError, Message: "invalid stop payload: " + err.Error()}
		}
		mp, err := c.Orchestrator().Find(refOf(data))
		if err != nil {
			return nil, err
		}
		return nil, c.Orchestrator().Stop(mp.ID, data.Force)
	})

	s.Handle(ipc.TypeRestart, func(req ipc.Request) (any, error) {
		var data ipc.ProcessRefData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, &config.Error{Kind: config.ErrProtocolError, Message: "invalid restart payload: " + err.Error()}
		}
		mp, err := c.Orchestrator().Find(refOf(data))
		if err != nil {
			return nil, err
		}
		if err := c.Orchestrator().Restart(mp.ID, data.Graceful); err != nil {
			return nil, err
		}
		refreshed, err := c.Orchestrator().Get(mp.ID)
		if err != nil {
			return nil, err
		}
		return refreshed.Snapshot(), nil
	})

	s.Handle(ipc.TypeList, func(req ipc.Request) (any, error) {
		return c.Orchestrator().List(), nil
	})

	s.Handle(ipc.TypeStatus, func(req ipc.Request) (any, error) {
		var data ipc.ProcessRefData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, &config.Error{Kind: config.ErrProtocolError, Message: "invalid status payload: " + err.Error()}
		}
		mp, err := c.Orchestrator().Find(refOf(data))
		if err != nil {
			return nil, err
		}
		return mp.Snapshot(), nil
	})

	s.Handle(ipc.TypeLogs, func(req ipc.Request) (any, error) {
		var data ipc.LogsData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return nil, &config.Error{Kind: config.ErrProtocolError, Message: "invalid logs payload: " + err.Error()}
		}
		lines := data.Lines
		if lines <= 0 {
			lines = 100
		}
		ref := data.ProcessID
		if ref == "" {
			ref = data.Name
		}
		processID := ref
		if ref != "" {
			if mp, err := c.Orchestrator().Find(ref); err == nil {
				processID = mp.ID
			}
		}
		return c.Logs().GetRecent(lines, processID), nil
	})

	s.Handle(ipc.TypeShutdown, func(req ipc.Request) (any, error) {
		c.RequestShutdown()
		return nil, nil
	})

	s.Handle(ipc.TypeWebUI, func(req ipc.Request) (any, error) {
		// The Web dashboard is an external collaborator (spec.md §1
		// Non-goals); the Daemon Core treats it only as a start/stop
		// target with no dashboard logic of its own to run here.
		return nil, &config.Error{Kind: config.ErrInvalidConfig, Message: "webui is not managed by this daemon build"}
	})
}

func refOf(d ipc.ProcessRefData) string {
	if d.ProcessID != "" {
		return d.ProcessID
	}
	return d.Name
}
