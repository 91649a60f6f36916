package implementation

import (
	"context"

	"github.com/jonathan/codecraft/internal/gitops"
)

// GitWorkspace adapts a gitops.Workspace to the Workspace interface.
func GitWorkspace(ws *gitops.Workspace) Workspace {
	return gitWorkspace{ws: ws}
}

type gitWorkspace struct {
	ws *gitops.Workspace
}

func (g gitWorkspace) Lease(ctx context.Context, remote, baseBranch string) (Lease, error) {
	lease, err := g.ws.Lease(ctx, remote, baseBranch)
	if err != nil {
		return nil, err
	}
	return lease, nil
}
