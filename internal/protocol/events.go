package protocol

// Inbound event names sent by console clients.
const (
	InUserInformation        = "userInformation"
	InVoice                  = "voice"
	InAffiliationListRequest = "AFFILIATION_LIST_REQUEST"
	InVoiceChannelRequest    = "VOICE_CHANNEL_REQUEST"
	InReleaseVoiceChannel    = "RELEASE_VOICE_CHANNEL"
	InChannelAffiliationReq  = "CHANNEL_AFFILIATION_REQUEST"
	InRemoveAffiliation      = "REMOVE_AFFILIATION"
	InEmergencyCall          = "EMERGENCY_CALL"
	InRidInhibit             = "RID_INHIBIT"
	InRidInhibitAck          = "RID_INHIBIT_ACK"
	InRidUninhibit           = "RID_UNINHIBIT"
	InRidUninhibitAck        = "RID_UNINHIBIT_ACK"
	InInformationAlert       = "INFORMATION_ALERT"
	InCancellationAlert      = "CANCELLATION_ALERT"
	InRegRequest             = "REG_REQUEST"
	InRidPage                = "RID_PAGE"
	InRidPageAck             = "RID_PAGE_ACK"
	InForceVoiceChannelGrant = "FORCE_VOICE_CHANNEL_GRANT"
	InPeerLoginRequest       = "PEER_LOGIN_REQUEST"
)

// Outbound event names broadcast by the hub.
const (
	OutUsersUpdate              = "usersUpdate"
	OutAudio                    = "send"
	OutAffiliationLookupUpdate  = "AFFILIATION_LOOKUP_UPDATE"
	OutVoiceChannelRequest      = "VOICE_CHANNEL_REQUEST"
	OutVoiceChannelGrant        = "VOICE_CHANNEL_GRANT"
	OutVoiceChannelDeny         = "VOICE_CHANNEL_DENY"
	OutVoiceChannelRelease      = "VOICE_CHANNEL_RELEASE"
	OutChannelAffiliationReq    = "CHANNEL_AFFILIATION_REQUEST"
	OutChannelAffiliationGrant  = "CHANNEL_AFFILIATION_GRANTED"
	OutRemoveAffiliationGranted = "REMOVE_AFFILIATION_GRANTED"
	OutEmergencyCall            = "EMERGENCY_CALL"
	OutRidInhibit               = "RID_INHIBIT"
	OutRidInhibitAck            = "RID_INHIBIT_ACK"
	OutRidUninhibit             = "RID_UNINHIBIT"
	OutRidUninhibitAck          = "RID_UNINHIBIT_ACK"
	OutInformationAlert         = "INFORMATION_ALERT"
	OutCancellationAlert        = "CANCELLATION_ALERT"
	OutRegRequest               = "REG_REQUEST"
	OutRegGranted               = "REG_GRANTED"
	OutRegDenied                = "REG_DENIED"
	OutRegRefuse                = "REG_REFUSE"
	OutPageRid                  = "PAGE_RID"
	OutPageRidAck               = "PAGE_RID_ACK"
)
