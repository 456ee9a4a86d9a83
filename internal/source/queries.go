package source

// Read-only queries against the 3CX schema. Every query that supports
// incremental sync takes the watermark as $1; passing NULL scans the full
// history, which the reconciliation engine's periodic divergence check relies
// on.

const qLiveMessages = `
    SELECT id::text, conversation_id::text, sender_id::text, NULL::text,
           message, time_sent, is_external
    FROM chatmessages
    WHERE ($1::timestamptz IS NULL OR time_sent > $1)
    ORDER BY time_sent ASC
    `

const qHistoryMessages = `
    SELECT message_id::text, conversation_id::text, NULL::text, sender_display_name,
           message, time_sent, is_external
    FROM chat_messages_history_view
    WHERE ($1::timestamptz IS NULL OR time_sent > $1)
    ORDER BY time_sent ASC
    `

const qLiveConversations = `
    SELECT id::text, name, time_created, last_message_time
    FROM chatconversations
    WHERE ($1::timestamptz IS NULL OR COALESCE(last_message_time, time_created) > $1)
    ORDER BY COALESCE(last_message_time, time_created) ASC
    `

const qHistoryConversations = `
    SELECT conversation_id::text, title, message_count, time_created, last_message_time
    FROM chat_conversations_history_view
    WHERE ($1::timestamptz IS NULL OR COALESCE(last_message_time, time_created) > $1)
    ORDER BY COALESCE(last_message_time, time_created) ASC
    `

const qParticipants = `
    SELECT conversation_id::text, participant_name
    FROM chatparticipants
    WHERE conversation_id::text = ANY($1)
    ORDER BY conversation_id, participant_name
    `

const qFileMappings = `
    SELECT file_name, original_name, message_id::text
    FROM chatfiles
    WHERE original_name IS NOT NULL
    `

const qCallLogs = `
    SELECT call_id::text, from_no, from_display_name, to_no, to_display_name,
           direction, start_time, end_time,
           COALESCE(EXTRACT(EPOCH FROM (end_time - start_time))::int, 0),
           answered, cost::text
    FROM call_history_view
    WHERE ($1::timestamptz IS NULL OR start_time > $1)
    ORDER BY start_time ASC
    `

const qRecordings = `
    SELECT id::text, ext_number, other_party, start_time, duration, file_name,
           COALESCE(file_size, 0)
    FROM recordings
    WHERE ($1::timestamptz IS NULL OR start_time > $1)
    ORDER BY start_time ASC
    `

const qVoicemails = `
    SELECT id::text, ext_number, caller_number, received_time, duration,
           file_name, COALESCE(file_size, 0), transcription
    FROM voicemails
    WHERE ($1::timestamptz IS NULL OR received_time > $1)
    ORDER BY received_time ASC
    `

const qFaxes = `
    SELECT id::text, from_no, to_no, received_time, COALESCE(pages, 0),
           file_name, COALESCE(file_size, 0)
    FROM fax_files
    WHERE ($1::timestamptz IS NULL OR received_time > $1)
    ORDER BY received_time ASC
    `

const qMeetings = `
    SELECT id::text, title, organizer, start_time, duration, file_name,
           COALESCE(file_size, 0)
    FROM meeting_recordings
    WHERE ($1::timestamptz IS NULL OR start_time > $1)
    ORDER BY start_time ASC
    `

const qExtensions = `
    SELECT id::text, extension, display_name, email, enabled
    FROM users
    ORDER BY extension ASC
    `
