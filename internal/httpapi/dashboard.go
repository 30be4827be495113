package httpapi

import (
	"fmt"
	"net/http"
)

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Quill Workspace</title>
  <style>
    :root {
      --ink: #26202e;
      --paper: #f6f2fa;
      --card: #fffdfe;
      --line: #d9cfe6;
      --accent: #7c4dbe;
      --accent-2: #d98a3c;
      --muted: #76708a;
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      font-family: "Iowan Old Style", "Palatino", "Segoe UI", serif;
      color: var(--ink);
      background: linear-gradient(150deg, #fbf7ff 0%, #f2eef8 55%, #fffdfe 100%);
      min-height: 100vh;
      padding: 24px;
    }

    .shell { max-width: 960px; margin: 0 auto; display: grid; gap: 14px; }

    .card {
      background: var(--card);
      border: 1px solid var(--line);
      border-radius: 14px;
      padding: 16px;
    }

    h1 { margin: 0; font-size: 1.5rem; }
    .sub { margin-top: 4px; color: var(--muted); font-size: 0.9rem; }

    .row { display: flex; gap: 10px; margin-top: 12px; }
    .row input {
      flex: 1;
      border-radius: 8px;
      border: 1px solid var(--line);
      padding: 8px 10px;
      font: inherit;
    }
    .row button {
      border-radius: 8px;
      border: none;
      background: var(--accent);
      color: #fff;
      padding: 8px 16px;
      font: inherit;
      cursor: pointer;
    }

    .stats { display: flex; gap: 18px; flex-wrap: wrap; }
    .stat b { font-size: 1.4rem; display: block; }
    .stat span { color: var(--muted); font-size: 0.8rem; }

    ul { margin: 8px 0 0; padding-left: 18px; }
    li { margin: 3px 0; }
    .tag { color: var(--accent-2); font-size: 0.8rem; }
    #feed li { font-family: ui-monospace, monospace; font-size: 0.8rem; }
    .error { color: #b0403a; }
  </style>
</head>
<body>
  <div class="shell">
    <div class="card">
      <h1>Quill Workspace</h1>
      <div class="sub">Projects, artifacts, and daily progress at a glance.</div>
      <div class="row">
        <input id="token" type="password" placeholder="access token" />
        <button id="connect">Connect</button>
      </div>
      <div id="status" class="sub"></div>
    </div>
    <div class="card">
      <div class="stats">
        <div class="stat"><b id="xp">-</b><span>XP</span></div>
        <div class="stat"><b id="streak">-</b><span>day streak</span></div>
        <div class="stat"><b id="best">-</b><span>best streak</span></div>
      </div>
    </div>
    <div class="card">
      <strong>Projects</strong>
      <ul id="projects"></ul>
    </div>
    <div class="card">
      <strong>Live activity</strong>
      <ul id="feed"></ul>
    </div>
  </div>
  <script>
    const el = (id) => document.getElementById(id);
    let socket = null;

    async function api(path) {
      const resp = await fetch(path, {
        headers: {
          "Authorization": "Bearer " + el("token").value,
          "X-Correlation-Id": "dash_" + Date.now(),
        },
      });
      if (!resp.ok) throw new Error("http " + resp.status);
      return resp.json();
    }

    async function refresh() {
      const profile = await api("/v1/profile");
      el("xp").textContent = profile.xp;
      el("streak").textContent = profile.streakCount;
      el("best").textContent = profile.bestStreak;

      const page = await api("/v1/projects?pageSize=50");
      el("projects").innerHTML = "";
      for (const project of page.projects) {
        const item = document.createElement("li");
        item.textContent = project.title + " ";
        const tag = document.createElement("span");
        tag.className = "tag";
        tag.textContent = project.status;
        item.appendChild(tag);
        el("projects").appendChild(item);
      }
    }

    function subscribe() {
      if (socket) socket.close();
      const scheme = location.protocol === "https:" ? "wss" : "ws";
      socket = new WebSocket(scheme + "://" + location.host +
        "/v1/activity/ws?access_token=" + encodeURIComponent(el("token").value));
      socket.onmessage = (msg) => {
        const event = JSON.parse(msg.data);
        const item = document.createElement("li");
        item.textContent = event.timestamp + " " + event.type + " " + (event.entityId || "");
        el("feed").prepend(item);
        refresh().catch(() => {});
      };
    }

    el("connect").addEventListener("click", async () => {
      el("status").textContent = "connecting...";
      el("status").classList.remove("error");
      try {
        await refresh();
        subscribe();
        el("status").textContent = "connected";
      } catch (err) {
        el("status").textContent = "connection failed: " + err.message;
        el("status").classList.add("error");
      }
    });
  </script>
</body>
</html>`

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, dashboardHTML)
}
