package handlers

import "net/http"

// TestPage serves a self-contained page for poking the websocket API from a
// browser: connect as a supervisor, join as a participant, push a frame.
func (h *Handler) TestPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(testPageHTML))
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Live Feedback System - WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; padding: 20px; background: #f5f5f5; }
        .container { max-width: 1000px; margin: 0 auto; background: white; padding: 30px; border-radius: 8px; }
        button { padding: 10px 20px; margin: 5px; cursor: pointer; background: #3b82f6; color: white; border: none; border-radius: 4px; }
        input { padding: 8px; margin: 5px; border: 1px solid #ddd; border-radius: 4px; }
        #messages { background: #f9f9f9; padding: 15px; border-radius: 4px; height: 400px; overflow-y: auto; font-family: monospace; font-size: 12px; }
        .room-code { font-size: 24px; font-weight: bold; color: #3b82f6; letter-spacing: 2px; }
        .section { margin: 20px 0; padding: 15px; border: 1px solid #e5e7eb; border-radius: 8px; }
    </style>
</head>
<body>
<div class="container">
    <h1>Live Feedback System - WebSocket Test</h1>
    <div class="section">
        <h2>Supervisor</h2>
        <button onclick="connectSupervisor()">Connect as Supervisor</button>
        <div id="roomCode"></div>
    </div>
    <div class="section">
        <h2>Participant</h2>
        <input type="text" id="roomId" placeholder="Room code">
        <input type="text" id="participantId" value="p1">
        <input type="text" id="participantName" value="Jane Doe">
        <button onclick="connectParticipant()">Connect as Participant</button>
        <button onclick="sendAttentiveFrame()">Send Attentive Frame</button>
        <button onclick="sendDrowsyFrame()">Send Drowsy Frame</button>
    </div>
    <div class="section">
        <h3>Messages</h3>
        <pre id="messages"></pre>
    </div>
</div>
<script>
    let supervisorWs = null, participantWs = null;
    const messages = document.getElementById('messages');
    function log(msg) {
        messages.textContent += '[' + new Date().toLocaleTimeString() + '] ' + msg + '\n';
        messages.scrollTop = messages.scrollHeight;
    }
    function wsBase() {
        return (location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host;
    }
    function connectSupervisor() {
        supervisorWs = new WebSocket(wsBase() + '/ws/supervisor');
        supervisorWs.onmessage = (ev) => {
            log('supervisor <- ' + ev.data);
            const msg = JSON.parse(ev.data);
            if (msg.type === 'room_created') {
                document.getElementById('roomCode').innerHTML =
                    '<div class="room-code">' + msg.data.room_id + '</div>';
                document.getElementById('roomId').value = msg.data.room_id;
            }
        };
        supervisorWs.onclose = () => log('supervisor disconnected');
    }
    function connectParticipant() {
        const room = document.getElementById('roomId').value;
        const id = document.getElementById('participantId').value;
        const name = document.getElementById('participantName').value;
        participantWs = new WebSocket(wsBase() + '/ws/participant/' + room + '/' + id + '?name=' + encodeURIComponent(name));
        participantWs.onmessage = (ev) => log('participant <- ' + ev.data);
        participantWs.onclose = (ev) => log('participant disconnected (' + ev.code + ')');
    }
    function sendFrame(data) {
        if (!participantWs || participantWs.readyState !== WebSocket.OPEN) {
            log('participant not connected');
            return;
        }
        participantWs.send(JSON.stringify({type: 'attention_update', data: data}));
    }
    function sendAttentiveFrame() {
        sendFrame({gaze_direction: {x: 0.05, y: 0.02}, head_pose: {pitch: 3, yaw: -2}, eye_aspect_ratio: 0.32});
    }
    function sendDrowsyFrame() {
        sendFrame({gaze_direction: {x: 0.0, y: 0.0}, head_pose: {pitch: 0, yaw: 0}, eye_aspect_ratio: 0.1});
    }
</script>
</body>
</html>
`
